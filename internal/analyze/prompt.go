package analyze

import "encoding/json"

// DefaultPrompt is used when the request does not carry one.
const DefaultPrompt = `You are analyzing a case study of a client design project. Your task is to extract the key information about the project, its execution, and outcomes.

The case study content includes:
1. Extracted text from the PDF
2. Text extracted from images using OCR
3. Descriptions of images from the case study

Based on all this content, please provide:
- A concise but comprehensive summary of the client project, including the challenge, approach, and key outcomes
- The key deliverables and solutions implemented for the client, highlighting specific impacts and results
- Project insights covering key design decisions, client-specific value delivered, and broader implications for future client work

Focus on the concrete project outcomes, client impact, and the specific solutions developed through the design process.`

// DefaultSchema is the default output schema. Validation against it is
// advisory: a parsed object missing required fields is still returned.
var DefaultSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "summary": {
      "type": "string",
      "description": "A concise summary of the client project, its objectives, and delivered outcomes"
    },
    "key_points": {
      "type": "array",
      "items": {"type": "string"},
      "description": "Key deliverables, solutions, and outcomes achieved for the client"
    },
    "insights": {
      "type": "array",
      "items": {"type": "string"},
      "description": "Project insights including design decisions, client impact, and broader implications for future work"
    }
  },
  "required": ["summary", "key_points", "insights"]
}`)
