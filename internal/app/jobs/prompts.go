package jobs

import "fmt"

func extractPrompt(blurb string) string {
	return fmt.Sprintf(`You are a helpful assistant that extracts job details from a blurb. You need to carefully distinguish between requirements (general requirements for the job output) and instructions (specific requirements for the job output).

The extracted job details should be in the following JSON format:
{
  "title": <clear, concise job title>,
  "description": <detailed description of what the job entails>,
  "requirements": [<list of general requirements that the final output must meet or have>],
  "instructions": [<list of specific requirements for the job output>]
}

Examples:
- Requirements: "The poem should be 10 lines long", "The design should use blue color scheme"
- Instructions: "The poem must rhyme", "The design must be minimalist", "The logo must be scalable"

The blurb is: %s

There should be no other text before or after the JSON in the response.`, blurb)
}

func gigImagePrompt(title, description string) string {
	return fmt.Sprintf(`Create a pixel art NFT image for a gig with the following details:

Title: %s
Description: %s

Generate a strict pixel art style image that represents this gig/job. The image should be:
- Pure pixel art with large, chunky pixels that are clearly visible
- 64-bit aesthetic with rich, vibrant color palette
- Suitable for NFT use with bold, distinctive design
- Representative of the gig's theme and purpose
- High contrast and visually striking
- Include relevant symbols or elements that relate to the job title and description
- Each pixel should be deliberately placed with no anti-aliasing or smooth gradients
- Maintain the authentic pixel art aesthetic throughout
- You do not need to include any text in the image, just a pictoral depiction of the gig/job as a pixel art image

Make sure the pixel art has a retro gaming feel with large, distinct pixels and captures the essence of the gig in a classic digital art format suitable for NFT minting.`, title, description)
}
