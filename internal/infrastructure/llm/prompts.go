package llm

import "fmt"

// Sentinel answers of the enhance-title prompt
const (
	answerSufficient = "SUFFICIENT"
	answerTooVague   = "TOO_VAGUE"
)

func enhanceTitlePrompt(title string) string {
	return fmt.Sprintf(`You are helping with product identification for reselling. Given this Facebook Marketplace title: %q

If this title is specific enough to find exact product matches (like "iPhone 15 Pro Max 256GB"), respond with: SUFFICIENT

If this title is too vague but you can confidently guess the specific product (like "Yeti Mic" -> "Blue Yeti USB Microphone"), respond with the enhanced product name.

If this title is too vague and you cannot confidently determine the specific product, respond with: TOO_VAGUE

Title to analyze: %q`, title, title)
}

const analyzeImagePrompt = "Analyze this product image and provide a specific product name that would be suitable " +
	"for searching sold listings on eBay. Include brand, model, and key specifications if visible. Be specific and concise."

func classifyPrompt(title string) string {
	return fmt.Sprintf(`Analyze this Facebook Marketplace listing title: %q

Is this a PHYSICAL PRODUCT that could be resold on eBay?

RESPOND WITH ONLY: YES or NO

Examples:
- "iPhone 15 Pro Max" → YES (physical electronics)
- "Canon camera" → YES (physical item)
- "I need employees" → NO (hiring/services)
- "Hair removal service" → NO (service)
- "Missing dog" → NO (not for sale)
- "Room for rent" → NO (real estate/rental)
- "Car repair" → NO (service)
- "Tutoring available" → NO (service)
- "Nike shoes" → YES (physical item)`, title)
}
