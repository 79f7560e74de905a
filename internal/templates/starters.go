package templates

const configFile = `# easyblocks configuration. Every key can be overridden with an
# EASYBLOCKS_ environment variable, e.g. EASYBLOCKS_SERVER_PORT.
project:
  id: {{.ProjectID}}
  definitions: easyblocks.project.yml
  locale: {{.Locale}}

server:
  host: localhost
  port: {{.Port}}

database:
  driver: {{.Database}}
  url: "{{.DSN}}"

cache:
  backend: memory
  ttl: 5m

log:
  level: info
  format: console

resources:
  fixtures: fixtures.yml
`

const fixturesFile = `# Results served for external references while no resource service is
# configured. Keyed by widget id, then external id.
results: {}
`

// Blank is a project with the built-in components only.
func Blank() *Template {
	return &Template{
		Name:        "blank",
		Description: "Built-in components and a single empty page",
		Files: []File{
			{Path: "easyblocks.yml", Content: configFile},
			{Path: "fixtures.yml", Content: fixturesFile},
			{Path: "easyblocks.project.yml", Content: `locales:
  - code: {{.Locale}}
    isDefault: true
`},
			{Path: "pages/home.json", Content: `{
  "documentId": "home",
  "projectId": "{{.ProjectID}}",
  "version": 0,
  "config": {
    "_template": "Stack",
    "_id": "root",
    "items": [
      {
        "_template": "Text",
        "_id": "welcome",
        "value": {
          "id": "local.welcome",
          "widgetId": "@easyblocks/local-text",
          "value": {"{{.Locale}}": "{{title .ProjectID}}"}
        }
      }
    ]
  }
}
`},
		},
	}
}

// Landing is a project with a custom hero component and a page using it.
func Landing() *Template {
	return &Template{
		Name:        "landing",
		Description: "Landing page with a custom Hero component",
		Files: []File{
			{Path: "easyblocks.yml", Content: configFile},
			{Path: "fixtures.yml", Content: fixturesFile},
			{Path: "easyblocks.project.yml", Content: `devices:
  - id: sm
    w: 640
    breakpoint: 768
  - id: md
    w: 1024
    breakpoint: 1280
  - id: lg
    w: 1440
    isMain: true
locales:
  - code: {{.Locale}}
    isDefault: true
tokens:
  colors:
    - id: brand
      value: "#3d5afe"
components:
  - id: Hero
    label: Hero
    type: [section]
    schema:
      - prop: title
        type: string
        defaultValue: Welcome to {{.ProjectID}}
      - prop: background
        type: color
        defaultValue:
          ref: brand
          value: "#3d5afe"
      - prop: items
        type: component-collection
        accepts: [item]
    styled:
      Root:
        __as: header
        backgroundColor: $values.background
        padding: 48
    render:
      text: title
      slots: [items]
`},
			{Path: "pages/home.json", Content: `{
  "documentId": "home",
  "projectId": "{{.ProjectID}}",
  "version": 0,
  "config": {
    "_template": "Stack",
    "_id": "root",
    "items": [
      {
        "_template": "Hero",
        "_id": "hero",
        "items": [
          {
            "_template": "Text",
            "_id": "tagline",
            "value": {
              "id": "local.tagline",
              "widgetId": "@easyblocks/local-text",
              "value": {"{{.Locale}}": "Built with easyblocks"}
            }
          }
        ]
      }
    ]
  }
}
`},
		},
	}
}
