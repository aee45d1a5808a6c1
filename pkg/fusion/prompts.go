package fusion

// System prompts for the fusion legs. The delta prompt is the heart of
// the semantic set difference: it must extract only what the base summary
// does not already cover, and answer with the sentinel when nothing is new.

const deduplicationSystemPrompt = "You are a Difference Engine. Compare the 'New Text' against the 'Known Context'. " +
	"Extract ONLY facts/formulas/nuances present in 'New Text' that are MISSING from 'Known Context'. " +
	"If the information is redundant, return an empty string. Do not chat."

const summarySystemPrompt = "You are an expert summarizer. " +
	"Condense the following text into a dense, high-level narrative summary. " +
	"Capture the key themes, chronological flow, and main arguments. " +
	"Do not lose technical details."

const introSystemPrompt = "You are a textbook editor. Write a brief introduction."

const baseSectionSystemPrompt = "You are a textbook editor creating a study guide section."

const conclusionSystemPrompt = "You are a textbook editor. Write a brief conclusion."

// emptyDeltaSentinel is what the model must answer when a chunk adds
// nothing beyond the known context, so redundancy is detected
// deterministically instead of by free-text heuristics.
const emptyDeltaSentinel = "NO_NEW_INFO"
