package rag

import (
	"fmt"
	"strings"

	"github.com/kechemale/TenaAI/pkg/knowledge"
)

// UnknownPhrase is the sentence the model must use when the context does
// not answer the question.
const UnknownPhrase = "The clinical guideline does not specify this information."

// NoContextMessage is returned instead of calling the model when retrieval
// finds no usable context.
const NoContextMessage = "No relevant healthcare guideline document was found for your question.\n\n" +
	"Answers come only from the official clinical guidelines, never from general knowledge, " +
	"so no answer will be made up. Please rephrase or try another clinical topic."

// ErrorMarker prefixes the text of a failed model call.
const ErrorMarker = "Error generating answer:"

// DefaultSystemPrompt restricts the model to the supplied context.
const DefaultSystemPrompt = "You are a cautious healthcare assistant that answers strictly from the " +
	"clinical guideline excerpts supplied in the user message. Never use general knowledge, " +
	"training data or any external source. If the excerpts do not answer the question, or " +
	"answer it only partly, say exactly: \"" + UnknownPhrase + "\""

// contextSeparator joins retrieved texts.
const contextSeparator = "\n\n"

// assembleContext joins the metadata text of every hit in retrieval order,
// skipping hits whose text is missing or blank.
func assembleContext(hits []knowledge.Hit) string {
	texts := make([]string, 0, len(hits))
	for _, h := range hits {
		t := h.Chunk.ContextText()
		if strings.TrimSpace(t) == "" {
			continue
		}
		texts = append(texts, t)
	}
	return strings.Join(texts, contextSeparator)
}

// userPrompt embeds question and context verbatim.
func userPrompt(question, context string) string {
	return fmt.Sprintf(`Answer the question using only the context below.

Question:
%s

Context (official clinical guideline documents):
%s

Your response should:
- Be medically accurate and concise.
- Use the terminology of the guidelines where possible.
- If the information is missing or unclear, say: "%s"
`, question, context, UnknownPhrase)
}
