package summary

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/scipunch/echofeed/config"
)

//go:embed *.prompt
var prompts embed.FS

const (
	agentName  = "summary"
	promptName = "summary"
)

// Agent rewrites article text into a two sentence teaser with Gemini
type Agent struct {
	prompt *ai.Prompt
	g      *genkit.Genkit
}

// New starts a genkit instance bound to the embedded teaser prompt
func New(ctx context.Context, creds config.GeminiCredentials) (*Agent, error) {
	if !creds.IsValid() {
		return nil, fmt.Errorf("invalid Gemini credentials: API key and model must be set")
	}

	g := genkit.Init(ctx,
		genkit.WithPlugins(&googlegenai.GoogleAI{
			APIKey: creds.APIKey,
		}),
		genkit.WithPromptFS(prompts),
		genkit.WithPromptDir("."),
		genkit.WithDefaultModel(fmt.Sprintf("googleai/%s", creds.Model)),
	)

	prompt := genkit.LookupPrompt(g, promptName)
	if prompt == nil {
		return nil, fmt.Errorf("prompt '%s' not found in embedded files", promptName)
	}

	return &Agent{
		prompt: &prompt,
		g:      g,
	}, nil
}

func (a *Agent) Name() string {
	return agentName
}

// Process returns the teaser for content. Empty input is rejected before any
// model call.
func (a *Agent) Process(ctx context.Context, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("nothing to summarize")
	}
	resp, err := (*a.prompt).Execute(ctx,
		ai.WithInput(map[string]any{"content": content}))
	if err != nil {
		return "", fmt.Errorf("failed to execute summary prompt: %w", err)
	}
	teaser := strings.TrimSpace(resp.Text())
	if teaser == "" {
		return "", fmt.Errorf("model returned an empty summary")
	}
	return teaser, nil
}
