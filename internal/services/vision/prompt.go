package vision

import "strings"

const extractionPromptBase = `You are identifying a collectible trading card from a photograph.
Respond with JSON only, matching this shape exactly:
{
  "language": "detected card language",
  "name": "card name as printed",
  "name_english": "English card name",
  "set_name": "set name as printed",
  "set_name_english": "English set name",
  "card_number": "printed catalog number, e.g. 025/025",
  "rarity": "rarity as printed or inferred",
  "confidence": 0-100,
  "alternatives": ["up to three alternative identifications"],
  "reasoning": "one short sentence"
}
If a field cannot be read, use an empty string. Never invent a catalog number.`

// extractionPrompt tailors the structured-extraction prompt to the
// configured language mode.
func extractionPrompt(languageHint string) string {
	switch strings.ToLower(strings.TrimSpace(languageHint)) {
	case "english":
		return extractionPromptBase + "\nThe card is printed in English."
	case "japanese":
		return extractionPromptBase + "\nThe card is printed in Japanese; fill the native fields with the Japanese text."
	default:
		return extractionPromptBase
	}
}

const numberPrompt = `This image is the bottom strip of a collectible trading card.
Read the printed catalog number (shaped like 025/025 or 134/109).
Respond with JSON only:
{"card_number": "the number, or empty string if unreadable", "confidence": 0-100}`
