package agent

import (
	"fmt"

	"github.com/tickerchat/tickerchat/internal/llm"
)

// Sentinel is the literal marker a model reply must contain for an embedded
// query to be executed. The text between the marker and the next line break
// is the query; everything else in the reply is prose. This string contract
// is the sole protocol between the model and the executor.
const Sentinel = "SQL_QUERY:"

// windowPairs bounds how many past exchanges are replayed into each prompt.
const windowPairs = 5

func systemInstruction(schemaText string) string {
	return fmt.Sprintf(`You are a helpful stock data assistant. You help users query a stock market database.

Database Schema:
%s

IMPORTANT RULES:
1. When a user asks a question, you should:
   - First understand what data they need
   - Generate a SQL SELECT query to get that data
   - Format your response as: SQL_QUERY: <the query here>
   - Then provide a natural language explanation

2. You can ONLY generate SELECT queries. Never generate DELETE, DROP, TRUNCATE, UPDATE, INSERT, ALTER, or CREATE operations.

3. When returning data, format it nicely with tables, insights, and summaries.

4. Focus on stock-related queries only.

Example:
User: "Show me top 10 stocks by volume"
You: "SQL_QUERY: SELECT * FROM stocks ORDER BY volume DESC LIMIT 10

Here are the top 10 stocks by trading volume: [then describe the results]"

Be helpful, concise, and safety-conscious.`, schemaText)
}

func buildMessages(schemaText string, window []Turn, utterance string) []llm.Message {
	messages := make([]llm.Message, 0, len(window)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemInstruction(schemaText)})
	for _, turn := range window {
		role := llm.RoleUser
		if turn.Role == RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: utterance})
	return messages
}
