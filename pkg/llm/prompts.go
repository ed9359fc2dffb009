package llm

import (
	"fmt"
	"strings"

	"github.com/xhad/narrator/internal/models"
)

// DefaultAnalystSystem is used for categories without their own system message.
const DefaultAnalystSystem = "You are an expert technology analyst."

const DefaultLanguage = "German"

// NewsAnalysis asks for a summary of the new content of a page.
func NewsAnalysis(url, category string, keywords []string, language, content string) models.Prompt {
	if language == "" {
		language = DefaultLanguage
	}
	if category == "" {
		category = "technology"
	}
	return models.Prompt{
		Instructions: fmt.Sprintf("Please analyze the following new content from %s and provide a summary of the latest developments related to %s, "+
			"focusing on these keywords: %s. Highlight the most important updates and their practical implications for developers.\n"+
			"Provide the summary in %s.\n\nContent to analyze:\n",
			url, category, strings.Join(keywords, ", "), language),
		Content: content,
	}
}

// OCRCorrectionSystem instructs the model to return a cleaned page only.
const OCRCorrectionSystem = "Correct OCR recognition errors in the following text. Provide only the cleaned version without additional comments."

// OCRCorrection sends a page verbatim as content.
func OCRCorrection(page string) models.Prompt {
	return models.Prompt{Content: strings.TrimSpace(page)}
}

// TutorSystem is the persona for explaining book excerpts.
func TutorSystem(language string) string {
	if language == "" {
		language = DefaultLanguage
	}
	return fmt.Sprintf("You are an experienced teacher and trainer. Your task is to correct, explain and summarize the given text. Answer in %s.", language)
}

// ExplainExcerpt asks for a table of contents, an explanation of each point
// and a closing summary. The source is named first.
func ExplainExcerpt(source, text string) models.Prompt {
	return models.Prompt{
		Instructions: fmt.Sprintf("Start by mentioning the source: %s\n"+
			"Then explain the content by creating a short table of contents, go through it and explain the details of each point. "+
			"Finally summarize what it was about. Here is the text:\n\n", source),
		Content: text,
	}
}

// SummarizerSystem explains and summarizes text for listening.
func SummarizerSystem(language string) string {
	if language == "" {
		language = DefaultLanguage
	}
	return fmt.Sprintf("You are a helpful assistant that explains and summarizes text in %s.", language)
}

// ExplainText asks for an engaging spoken summary of a text file excerpt.
func ExplainText(source, language, text string) models.Prompt {
	if language == "" {
		language = DefaultLanguage
	}
	return models.Prompt{
		Instructions: fmt.Sprintf("Please explain and summarize the following text in %s. "+
			"Make it engaging and suitable for audio playback. Start with mentioning the source: %s\n\n", language, source),
		Content: text,
	}
}
