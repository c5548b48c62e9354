package collab

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docoutline/internal/doctree"
)

const ClassifyPrompt = `You are given numbered lines from a document, one block per line in the form "L<index>: <text>".
Identify the lines that are section titles.

Rules:
- A title names the section that follows it; it is usually short and has no terminal punctuation
- Markdown headings ("#", "##", ...) are titles with high confidence
- Short bold or capitalized lines that introduce content are titles with moderate confidence
- Figure and table captions, list items and sentences are NOT titles
- Use only indices that appear in the input

Respond with ONLY a JSON object:
{"highConfidence": {"reason": "...", "lines": [<index>, ...]}, "moderateConfidence": {"reason": "...", "lines": [<index>, ...]}}`

const SummarizePrompt = `Summarize the following blocks to be concise, one paragraph per coherent topic.
Each block is given as "Block <index>: <text>". Start a new summary only where the topic changes abruptly.
Every block index from the first to the last must be covered by exactly one summary, in order, without gaps.

Respond with ONLY a JSON object:
{"summaries": [{"summary": "...", "isAbruptChange": false, "startBlockIndex": <index>, "endBlockIndex": <index>}]}`

const CompressPrompt = `Compress each of the following blocks to about 10 words, keeping the key facts.
Each block is given as "Block <index>: <text>".

Respond with ONLY a JSON object:
{"blocks": [{"index": <index>, "compressedText": "..."}]}`

const HierarchyPrompt = `You maintain an ASCII tree of a document's section titles. Titles are referenced as T<number> and appear in document order.

Rules:
- Every title must appear exactly once in the tree
- A child title always has a greater number than its parent
- Titles that belong together at the same level (for example a title followed directly by its subtitle) may be combined on one line as "T2 - T3"
- Use "├── ", "└── " and "│   " to draw the tree, one title line per entry, four columns per level
- Summaries after a title describe its content; use them to judge nesting

Respond with ONLY the complete ASCII tree, no other text.`

const StructurePrompt = `Convert the following ASCII tree of section titles into JSON.
Each line is a node; "T2 - T3" means one node whose content is [2, 3].

Example:
T1
├── T2 - T3
└── T4
    └── T5
becomes
[{"content":[1],"children":[{"content":[2,3],"children":[]},{"content":[4],"children":[{"content":[5],"children":[]}]}]}]

Respond with ONLY the JSON array.`

const BoundedPrompt = `Summarize the following text into a single paragraph of at most %d words. Keep the most important facts.
Respond with ONLY the summary.`

const HookPrompt = `Rewrite the following summary as a single sentence of at most %d words that works as a good hook for the section.
Respond with ONLY the sentence.`

const LongPrompt = `Rewrite the following summary as clear, well-structured prose of a few short paragraphs separated by blank lines.
Respond with ONLY the paragraphs.`

// BuildClassifyPrompt lists the blocks at the given indices.
func BuildClassifyPrompt(blocks []doctree.Block, indices []int) string {
	var sb strings.Builder
	sb.WriteString(ClassifyPrompt)
	sb.WriteString("\n\n---\n")
	for _, i := range indices {
		sb.WriteString(classifyLine(i, blocks[i]))
		sb.WriteString("\n")
	}
	return sb.String()
}

func classifyLine(i int, b doctree.Block) string {
	return fmt.Sprintf("L%d: %s", i, oneLine(b.Content))
}

// BuildBlocksPrompt appends a "Block <i>: <text>" line for each meaningful
// block at the given indices.
func BuildBlocksPrompt(header string, blocks []doctree.Block, indices []int) string {
	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("\n\n---\n")
	for _, i := range indices {
		if !blocks[i].Meaningful {
			continue
		}
		fmt.Fprintf(&sb, "Block %d: %s\n", i, blocks[i].Content)
	}
	return sb.String()
}

// BuildHierarchyPrompt renders one resolver window.
func BuildHierarchyPrompt(priorTree string, context, elements []doctree.Element, first bool) string {
	var sb strings.Builder
	sb.WriteString(HierarchyPrompt)
	sb.WriteString("\n\n---\n")
	if !first {
		sb.WriteString("Current ASCII Tree:\n")
		sb.WriteString(priorTree)
		sb.WriteString("\n\n")
		if len(context) > 0 {
			sb.WriteString("Context from previous titles:\n")
			writeElements(&sb, context)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("Excerpt to add to the titles hierarchy:\n")
	writeElements(&sb, elements)
	if !first {
		sb.WriteString("\nUpdate the ASCII tree to include all titles above along with every title already in it.\n")
	}
	return sb.String()
}

func writeElements(sb *strings.Builder, elements []doctree.Element) {
	for _, e := range elements {
		if e.IsTitle() {
			sb.WriteString(oneLine(e.Label()))
		} else {
			sb.WriteString("  Summary: " + oneLine(e.Content))
		}
		sb.WriteString("\n")
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
