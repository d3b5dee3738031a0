package pipeline

import (
	"bytes"
	"fmt"
	"text/template"
)

// Prompts are text/template sources. Fields available: .Subtopic,
// .MainTopic, .Language and, for Summarize, .Transcript.
type Prompts struct {
	Image      string `yaml:"image"`
	Explain    string `yaml:"explain"`
	VideoQuery string `yaml:"video_query"`
	Summarize  string `yaml:"summarize"`
}

func DefaultPrompts() Prompts {
	return Prompts{
		Image:      "Example of {{.Subtopic}} in {{.MainTopic}}",
		Explain:    "Strictly in {{.Language}}, Explain me about this subtopic of {{.MainTopic}} with examples :- {{.Subtopic}}. Please Strictly Don't Give Additional Resources And Images.",
		VideoQuery: "{{.Subtopic}} {{.MainTopic}} in english",
		Summarize:  "Strictly in {{.Language}}, Summarize this theory in a teaching way :- {{.Transcript}}.",
	}
}

type promptData struct {
	Subtopic   string
	MainTopic  string
	Language   string
	Transcript string
}

type promptSet struct {
	image, explain, videoQuery, summarize *template.Template
}

// compile parses every template; blank fields fall back to the defaults.
func (p Prompts) compile() (*promptSet, error) {
	def := DefaultPrompts()
	pick := func(v, d string) string {
		if v == "" {
			return d
		}
		return v
	}
	var ps promptSet
	for _, t := range []struct {
		name string
		src  string
		dst  **template.Template
	}{
		{"image", pick(p.Image, def.Image), &ps.image},
		{"explain", pick(p.Explain, def.Explain), &ps.explain},
		{"video_query", pick(p.VideoQuery, def.VideoQuery), &ps.videoQuery},
		{"summarize", pick(p.Summarize, def.Summarize), &ps.summarize},
	} {
		tpl, err := template.New(t.name).Option("missingkey=error").Parse(t.src)
		if err != nil {
			return nil, fmt.Errorf("prompt %s: %w", t.name, err)
		}
		*t.dst = tpl
	}
	return &ps, nil
}

func render(t *template.Template, d promptData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func dataFor(req Request) promptData {
	return promptData{Subtopic: req.SubtopicTitle, MainTopic: req.MainTopic, Language: req.Language}
}
