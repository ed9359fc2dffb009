package processor

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xhad/narrator/internal/models"
)

// Strategy selects the unit a text is split into before packing.
type Strategy string

const (
	StrategyParagraph Strategy = "paragraph"
	StrategySentence  Strategy = "sentence"
	StrategyWord      Strategy = "word"
	StrategyChar      Strategy = "char"
)

// PageSeparator delimits pages in extracted book text files.
const PageSeparator = "----------------------------------------------------------------------- NEXT PAGE"

// DefaultChunkSize is slightly below the 4096 character limit of the speech API.
const DefaultChunkSize = 4000

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

type ProcessorConfig struct {
	ChunkSize    int
	Strategy     Strategy
	TargetChunks int
	// AllowHardSplit lets an oversized single word be cut at character
	// boundaries instead of being emitted whole.
	AllowHardSplit bool
}

type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultChunkSize
	}
	if config.Strategy == "" {
		config.Strategy = StrategyParagraph
	}
	if config.TargetChunks < 0 {
		config.TargetChunks = 0
	}

	return Processor{
		config: config,
	}
}

func (p *Processor) Config() ProcessorConfig {
	return p.config
}

// Process chunks text and, if a target count is configured, merges the
// result down to that many chunks.
func (p *Processor) Process(text string) []models.Chunk {
	chunks := chunk(text, p.config.ChunkSize, p.config.Strategy, p.config.AllowHardSplit)
	if p.config.TargetChunks > 0 {
		chunks = Rebalance(chunks, p.config.TargetChunks, separator(p.config.Strategy))
	}
	return chunks
}

// Chunk splits text into chunks of at most maxSize bytes along the units of
// strategy. An oversized unit is re-split with the next finer strategy; a
// single word longer than maxSize is kept whole unless strategy is
// StrategyChar.
func Chunk(text string, maxSize int, strategy Strategy) []models.Chunk {
	return chunk(text, maxSize, strategy, strategy == StrategyChar)
}

func chunk(text string, maxSize int, strategy Strategy, hardSplit bool) []models.Chunk {
	if maxSize <= 0 {
		maxSize = DefaultChunkSize
	}
	texts := pack(text, maxSize, strategy, hardSplit)
	return number(texts)
}

func pack(text string, maxSize int, strategy Strategy, hardSplit bool) []string {
	units := split(text, strategy, maxSize)
	sep := separator(strategy)

	var out []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			out = append(out, s)
		}
		current.Reset()
	}

	for _, unit := range units {
		if len(unit) > maxSize {
			flush()
			finer := next(strategy)
			if finer == StrategyChar && !hardSplit {
				out = append(out, unit)
				continue
			}
			out = append(out, pack(unit, maxSize, finer, hardSplit)...)
			continue
		}

		if current.Len() == 0 {
			current.WriteString(unit)
			continue
		}
		if current.Len()+len(sep)+len(unit) <= maxSize {
			current.WriteString(sep)
			current.WriteString(unit)
			continue
		}
		flush()
		current.WriteString(unit)
	}
	flush()

	return out
}

func split(text string, strategy Strategy, maxSize int) []string {
	switch strategy {
	case StrategyParagraph:
		return nonEmpty(paragraphBreak.Split(text, -1))
	case StrategySentence:
		return splitSentences(text)
	case StrategyWord:
		return strings.Fields(text)
	default:
		return splitChars(strings.TrimSpace(text), maxSize)
	}
}

// splitSentences breaks after '.', '!' or '?' when followed by whitespace.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	var prev rune
	for i, r := range text {
		if unicode.IsSpace(r) && (prev == '.' || prev == '!' || prev == '?') {
			sentences = append(sentences, text[start:i])
			start = i
		}
		prev = r
	}
	sentences = append(sentences, text[start:])
	return nonEmpty(sentences)
}

// splitChars cuts text into pieces of at most maxSize bytes without
// breaking a UTF-8 sequence.
func splitChars(text string, maxSize int) []string {
	var pieces []string
	for len(text) > 0 {
		if len(text) <= maxSize {
			pieces = append(pieces, text)
			break
		}
		cut := maxSize
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			_, cut = utf8.DecodeRuneInString(text)
		}
		pieces = append(pieces, text[:cut])
		text = text[cut:]
	}
	return nonEmpty(pieces)
}

func next(strategy Strategy) Strategy {
	switch strategy {
	case StrategyParagraph:
		return StrategySentence
	case StrategySentence:
		return StrategyWord
	default:
		return StrategyChar
	}
}

func separator(strategy Strategy) string {
	switch strategy {
	case StrategyParagraph:
		return "\n\n"
	case StrategyChar:
		return ""
	default:
		return " "
	}
}

// Rebalance merges adjacent chunks into n groups of near-equal cardinality.
// Merged chunks are not bounded by the original chunk size.
func Rebalance(chunks []models.Chunk, n int, sep string) []models.Chunk {
	if n <= 0 || len(chunks) <= n {
		return chunks
	}

	size := len(chunks) / n
	remainder := len(chunks) % n

	merged := make([]string, 0, n)
	start := 0
	for i := 0; i < n; i++ {
		end := start + size
		if i < remainder {
			end++
		}
		merged = append(merged, strings.Join(models.Texts(chunks[start:end]), sep))
		start = end
	}

	return number(merged)
}

// SplitPages splits book text on PageSeparator, dropping blank pages.
func SplitPages(text string) []string {
	return nonEmpty(strings.Split(text, PageSeparator))
}

func number(texts []string) []models.Chunk {
	chunks := make([]models.Chunk, 0, len(texts))
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		chunks = append(chunks, models.Chunk{Index: len(chunks), Text: t})
	}
	return chunks
}

func nonEmpty(parts []string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
