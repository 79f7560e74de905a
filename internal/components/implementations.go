package components

import (
	"fmt"

	"github.com/easyblocks/easyblocks/internal/builder"
	"github.com/easyblocks/easyblocks/internal/logger"
)

// RegisterImplementations adds the built-in implementations to rt. Alert
// actions are written to log.
func RegisterImplementations(rt *builder.Registry, log logger.Logger) {
	log = logger.OrNop(log)

	rt.RegisterComponent(SectionWrapperID, renderSection)
	rt.RegisterComponent(StackID, func(p builder.Props) *builder.Element {
		return p.Box("Root").Append(p.Children("items")...)
	})
	rt.RegisterComponent(ImageID, renderImage)
	rt.RegisterComponent(TextID, func(p builder.Props) *builder.Element {
		return p.Box("Root").Append(builder.Text(p.Resource("value").String()))
	})
	rt.RegisterComponent(ButtonID, func(p builder.Props) *builder.Element {
		return p.Box("Root").Append(builder.Text(p.Resource("label").String()))
	})
	rt.RegisterComponent(ButtonsID, func(p builder.Props) *builder.Element {
		return p.Box("Root").Append(p.Children("buttons")...)
	})

	rt.RegisterLink(LinkID, renderLink)
	rt.RegisterAction(AlertID, func(params map[string]any, event builder.Event) {
		log.Info("alert action", map[string]interface{}{
			"text":  params["text"],
			"event": event.Type,
		})
	})
}

func renderSection(p builder.Props) *builder.Element {
	container := p.Box("Container")
	if p.String("headerMode") != "none" {
		if header := p.Slot("header"); header != nil {
			container.Append(p.Box("Header").Append(header))
		}
	}
	container.Append(p.Slot("component"))
	return p.Box("Root").Append(container)
}

func renderImage(p builder.Props) *builder.Element {
	inner := p.Box("ImageWrapper")
	if res := p.Resource("image"); res.OK() {
		src, alt := imageSource(res.Value)
		inner.Append(builder.El("img", map[string]string{
			"src":   src,
			"alt":   alt,
			"style": "display: block; object-fit: cover; width: 100%; height: 100%",
		}))
	} else if p.IsEditing {
		inner.Append(builder.El("div", map[string]string{"class": "eb-image-empty"}, builder.Text("No image")))
	}
	return p.Box("Wrapper").Append(p.Box("AspectRatioMaker"), inner)
}

// imageSource reads an image resource value: a plain URL or an object with
// url and alt.
func imageSource(v any) (string, string) {
	switch val := v.(type) {
	case string:
		return val, ""
	case map[string]any:
		src, _ := val["url"].(string)
		alt, _ := val["alt"].(string)
		return src, alt
	}
	return fmt.Sprint(v), ""
}

func renderLink(inner *builder.Element, params map[string]any) *builder.Element {
	inner.Tag = "a"
	if url, ok := params["url"].(string); ok && url != "" {
		inner.SetAttr("href", url)
	}
	if params["shouldOpenInNewWindow"] == true {
		inner.SetAttr("target", "_blank")
		inner.SetAttr("rel", "noopener noreferrer")
	}
	return inner
}
