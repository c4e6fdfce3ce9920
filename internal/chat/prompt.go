package chat

import (
	"fmt"
	"strings"

	"github.com/devashis/prajna/internal/model"
)

const contextPreamble = "Use the following context passages to answer the question. " +
	"If the answer is not contained in the context, say that you do not know."

// buildSystem assembles the instruction block: the site prompt followed by the
// retrieved passages, each labelled with its library, media type and title so
// the model can cite them.
func buildSystem(sitePrompt string, docs []model.RetrievedDocument) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(sitePrompt))
	if len(docs) == 0 {
		return sb.String()
	}
	sb.WriteString("\n\n")
	sb.WriteString(contextPreamble)
	sb.WriteString("\n")
	for _, doc := range docs {
		sb.WriteString(fmt.Sprintf("\n[%s | %s | %s]\n%s\n",
			doc.Metadata.Library, doc.Metadata.Type, doc.Metadata.Title,
			strings.TrimSpace(doc.PageContent)))
	}
	return sb.String()
}

// buildMessages appends the current question to the conversation history.
func buildMessages(history []model.ChatMessage, question string) []model.ChatMessage {
	messages := make([]model.ChatMessage, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, model.ChatMessage{Role: model.RoleUser, Content: question})
	return messages
}
