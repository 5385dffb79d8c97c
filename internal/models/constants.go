package models

var (
	// GroundedPromptTemplate takes the retrieved context followed by the
	// user question.
	GroundedPromptTemplate = `You are a helpful AI assistant that ONLY answers based on the provided context.

CONTEXT FROM DOCUMENTS:
%s

USER QUESTION: %s

INSTRUCTIONS:
- Answer ONLY using information from the CONTEXT above
- Be specific and quote relevant details from the context
- If the answer is not in the context, say "I don't have that information in the provided documents"

ANSWER: `
)

const (
	// NoDocumentsAnswer is returned by Ask when the index holds no
	// chunks. Fixed text, no provider call is made.
	NoDocumentsAnswer = "No documents have been ingested yet. Upload a document to start asking questions."

	ContextSeparator = "\n\n"
)
