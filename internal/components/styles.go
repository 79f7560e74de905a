package components

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/easyblocks/easyblocks/internal/compiler"
	"github.com/easyblocks/easyblocks/internal/schema"
)

// px reads a pixel length such as 16, "16" or "16px".
func px(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case float64:
		return int(val), true
	case string:
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(val), "px"))
		return n, err == nil
	}
	return 0, false
}

// spread copies a font token value into a style map.
func spread(style map[string]any, font any) {
	switch f := font.(type) {
	case map[string]any:
		for k, v := range f {
			style[k] = v
		}
	case string:
		if f != "" {
			style["fontFamily"] = f
		}
	}
}

func sectionStyles(in schema.StylesInput) (schema.StylesResult, error) {
	root := map[string]any{"__as": "section"}
	if bg, ok := in.Values["background"].(string); ok && bg != "" {
		root["backgroundColor"] = bg
	}
	if pad, ok := in.Values["padding"]; ok && pad != nil {
		root["paddingTop"] = pad
		root["paddingBottom"] = pad
	}

	container := map[string]any{"marginLeft": "auto", "marginRight": "auto"}
	margin, _ := px(in.Values["containerMargin"])
	container["paddingLeft"] = margin
	container["paddingRight"] = margin
	if mw, ok := in.Values["containerMaxWidth"].(string); ok && mw != "none" && mw != "" {
		container["maxWidth"] = mw
	}

	header := map[string]any{"marginBottom": 16}
	if in.Values["headerMode"] == "none" {
		header["display"] = "none"
	}

	width, _ := px(in.Params[compiler.ParamWidth])
	if mw, ok := px(in.Values["containerMaxWidth"]); ok && mw < width {
		width = mw
	}
	inner := map[string]any{
		compiler.ParamWidth:     width - 2*margin,
		compiler.ParamWidthAuto: false,
	}

	return schema.StylesResult{
		Styled: map[string]any{
			"Root":      root,
			"Container": container,
			"Header":    header,
		},
		Components: map[string]schema.ComponentOverride{
			"header":    {Params: inner},
			"component": {Params: inner},
		},
	}, nil
}

var alignItems = map[string]string{
	"left":   "flex-start",
	"center": "center",
	"right":  "flex-end",
}

func stackStyles(in schema.StylesInput) (schema.StylesResult, error) {
	align, _ := in.Values["align"].(string)
	root := map[string]any{
		"display":       "flex",
		"flexDirection": "column",
		"alignItems":    alignItems[align],
	}
	if gap := in.Values["gap"]; gap != nil {
		root["gap"] = gap
	}
	if align == "center" {
		root["textAlign"] = "center"
	}
	return schema.StylesResult{
		Styled: map[string]any{"Root": root},
		Components: map[string]schema.ComponentOverride{
			"items": {Direction: "vertical"},
		},
	}, nil
}

// aspectRatioPadding turns "w:h" into the padding that keeps that ratio.
func aspectRatioPadding(ratio string) (string, error) {
	w, h, ok := strings.Cut(ratio, ":")
	if !ok {
		return "", fmt.Errorf("invalid aspect ratio %q", ratio)
	}
	wn, err := strconv.ParseFloat(w, 64)
	if err != nil || wn == 0 {
		return "", fmt.Errorf("invalid aspect ratio %q", ratio)
	}
	hn, err := strconv.ParseFloat(h, 64)
	if err != nil {
		return "", fmt.Errorf("invalid aspect ratio %q", ratio)
	}
	return strconv.FormatFloat(hn/wn*100, 'f', -1, 64) + "%", nil
}

func imageStyles(in schema.StylesInput) (schema.StylesResult, error) {
	ratio, _ := in.Values["aspectRatio"].(string)
	if passed, ok := in.Params["passedAspectRatio"].(string); ok && passed != "" {
		ratio = passed
	}
	natural := ratio == "natural" || ratio == ""

	imageWrapper := map[string]any{
		"__action": "action",
		"position": "absolute",
		"top":      0,
		"left":     0,
		"width":    "100%",
		"height":   "100%",
	}
	maker := map[string]any{"position": "relative", "display": "block"}
	if natural {
		imageWrapper["position"] = "relative"
		maker["display"] = "none"
	} else {
		padding, err := aspectRatioPadding(ratio)
		if err != nil {
			return schema.StylesResult{}, err
		}
		maker["paddingBottom"] = padding
	}

	return schema.StylesResult{Styled: map[string]any{
		"Wrapper":          map[string]any{"position": "relative"},
		"ImageWrapper":     imageWrapper,
		"AspectRatioMaker": maker,
	}}, nil
}

func textStyles(in schema.StylesInput) (schema.StylesResult, error) {
	root := map[string]any{"__as": "p", "margin": 0}
	if c, ok := in.Values["color"].(string); ok && c != "" {
		root["color"] = c
	}
	spread(root, in.Values["font"])
	return schema.StylesResult{Styled: map[string]any{"Root": root}}, nil
}

func buttonStyles(in schema.StylesInput) (schema.StylesResult, error) {
	color, _ := in.Values["color"].(string)
	if color == "" {
		color = "#000000"
	}
	root := map[string]any{
		"display":      "inline-block",
		"padding":      "8px 16px",
		"cursor":       "pointer",
		"borderRadius": 4,
	}
	if in.Values["variant"] == "outline" {
		root["border"] = "1px solid " + color
		root["color"] = color
		root["backgroundColor"] = "transparent"
	} else {
		root["border"] = "none"
		root["color"] = "#ffffff"
		root["backgroundColor"] = color
	}
	return schema.StylesResult{Styled: map[string]any{"Root": root}}, nil
}

func buttonsStyles(in schema.StylesInput) (schema.StylesResult, error) {
	root := map[string]any{"display": "flex", "flexWrap": "wrap"}
	if gap := in.Values["gap"]; gap != nil {
		root["gap"] = gap
	}
	return schema.StylesResult{
		Styled: map[string]any{"Root": root},
		Components: map[string]schema.ComponentOverride{
			"buttons": {Direction: "horizontal"},
		},
	}, nil
}

func linkStylesStyles(in schema.StylesInput) (schema.StylesResult, error) {
	root := map[string]any{"textDecoration": "none"}
	if in.Values["underline"] == true {
		root["textDecoration"] = "underline"
	}
	if c, ok := in.Values["color"].(string); ok && c != "" {
		root["color"] = c
	}
	return schema.StylesResult{Styled: map[string]any{"Root": root}}, nil
}
