package evaluation

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are an experienced speaking examiner. You assess transcribed spoken answers against the CEFR scale and write clear, specific feedback the candidate can act on.`

func buildUserMessage(req Request) string {
	var b strings.Builder

	b.WriteString("Evaluate the following speaking responses based on the CEFR criteria.\n\n")
	b.WriteString(fmt.Sprintf("Task: %s - %s\n", req.TaskTitle, req.PartName))
	b.WriteString(fmt.Sprintf("Rating Criteria: %s\n", req.Criteria))

	b.WriteString("\nResponses:\n")
	for _, p := range req.Pairs {
		b.WriteString(fmt.Sprintf("\nQuestion %d: %s\n", p.QuestionIndex+1, p.Question))
		b.WriteString(fmt.Sprintf("Response: %s\n", p.Answer))
	}

	b.WriteString(fmt.Sprintf(`
Provide:
1. A CEFR level estimate (A1, A2, B1, B2, C1)
2. A score from 0-%d
3. Detailed feedback on grammar, vocabulary, pronunciation, fluency and cohesion
4. Suggestions for improvement

Questions that are missing from the responses were not answered in time. Use plain text without Markdown.`, req.MaxScore))

	return b.String()
}
