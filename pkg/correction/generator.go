package correction

import (
	"context"
	"fmt"

	"github.com/mendtool/mend/pkg/events"
	"github.com/mendtool/mend/pkg/llm"
	"github.com/mendtool/mend/pkg/parser"
	"github.com/mendtool/mend/pkg/prompts"
	"github.com/mendtool/mend/pkg/utils"
	"github.com/mendtool/mend/pkg/workspace"
)

// ModelGenerator produces whole-document file content for plan steps by
// asking the configured model. It satisfies plan.ContentGenerator.
type ModelGenerator struct {
	Client llm.Client
	Logger *utils.Logger
	Bus    *events.EventBus // optional
}

// GenerateContent asks the model for the complete content of path. A
// non-empty currentContent makes this a modification; otherwise the file is
// generated from scratch. The extracted document is rejected if the model
// elided sections, since a partial document applied as a whole-file write
// would destroy the rest of the file.
func (g *ModelGenerator) GenerateContent(ctx context.Context, path, instruction, currentContent string) (string, error) {
	language := workspace.LanguageForPath(path)

	var messages []llm.Message
	if currentContent == "" {
		messages = prompts.BuildGenerationMessages(instruction, path, "", "", language)
	} else {
		messages = prompts.BuildModificationMessages(instruction, path, currentContent, language)
	}

	raw, err := llm.ChatWithRetry(ctx, g.Client, messages, g.onChunk, g.Logger)
	if err != nil {
		return "", err
	}

	content := parser.ExtractCode(raw)
	if content == "" {
		return "", fmt.Errorf("model returned no code for %s", path)
	}
	if parser.HasPartialContentMarker(content) {
		return "", fmt.Errorf("model returned partial content for %s", path)
	}
	return content, nil
}

func (g *ModelGenerator) onChunk(chunk string) {
	if g.Bus == nil {
		return
	}
	g.Bus.Publish(events.EventTypeStreamChunk, events.StreamChunkEvent(chunk))
}
