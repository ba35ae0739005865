package assessment

import (
	"fmt"
	"strings"
)

const singleImageInstructions = `You are an insurance claims expert. Analyze this image and provide a detailed loss description for insurance claims.

FORMAT YOUR RESPONSE EXACTLY AS FOLLOWS:

**1. Type of Damage:** [brief description]
**2. Severity Level:** [Low/Moderate/High/Critical]
**3. Affected Areas:** [list of areas]
**4. Repair Requirements:** [estimated repairs needed]
**5. Potential Causes:** [likely causes]
**6. Safety Concerns:** [any safety issues]
**7. Recommended Actions:** [immediate steps to take]

Then provide a detailed analysis section.`

const multiImageInstructions = `You are an insurance claims expert. Analyze all these images and provide a comprehensive loss description for insurance claims.

FORMAT YOUR RESPONSE EXACTLY AS FOLLOWS:

**1. Type of Damage:** [brief description consolidated from all images]
**2. Severity Level:** [Low/Moderate/High/Critical - consider the most severe damage across all images]
**3. Affected Areas:** [list of areas combined from all images]
**4. Repair Requirements:** [estimated repairs needed - comprehensive assessment]
**5. Potential Causes:** [likely causes analyzed from patterns across images]
**6. Safety Concerns:** [any safety issues identified from all images]
**7. Recommended Actions:** [immediate steps to take]

Then provide a detailed analysis section.`

// ImageInstructions builds the prompt for image n (1-based) of total.
func ImageInstructions(meta Metadata, n, total int) string {
	ctx := fmt.Sprintf("%s, Image %d of %d", meta.contextLine(), n, total)
	return withContext(singleImageInstructions, ctx, meta.Description)
}

// BatchInstructions builds the prompt for one call carrying all images.
func BatchInstructions(meta Metadata, total int) string {
	ctx := fmt.Sprintf("%s, %d images", meta.contextLine(), total)
	return withContext(multiImageInstructions, ctx, meta.Description)
}

func withContext(template, ctx, description string) string {
	var b strings.Builder
	b.WriteString(template)
	b.WriteString("\n\nAdditional context: ")
	b.WriteString(ctx)
	if d := strings.TrimSpace(description); d != "" {
		b.WriteString("\nClaimant description: ")
		b.WriteString(d)
	}
	return b.String()
}
