package analyzer

// Phrase lists are package-level source data only; each Analyzer copies
// them in normalized form at construction so instances never share
// mutable state.

var farewellPhrases = []string{
	// Standard farewells.
	"goodbye", "bye", "thank you for your help", "that's all",
	"have a good day", "thanks for your assistance", "thanks for your help",
	"thank you for the information", "i appreciate your help",
	"that answers my question", "that's what i needed to know",
	"i have no more questions", "that's it for now", "until next time",
	"have a nice day", "take care", "farewell", "see you later",
	"thanks again", "this has been helpful", "this was helpful",

	// Meta-conversation endings.
	"conversation has reached its conclusion", "reached its logical conclusion",
	"conversation has ended", "end of this conversation",
	"ready for your next instruction", "ready for the next query",
	"standing by", "standing by to assist", "wait for genuine human input",
	"wait for your next question", "ready to move on",
	"this exchange is complete", "this interaction has concluded",

	// Acknowledgment of the conversation state itself.
	"unusual situation", "unusual exchange", "unusual interaction",
	"unusual circumstance", "reached an impasse", "conversation loop",
	"break this pattern", "break this loop",

	// Bare gratitude.
	"thank you", "thanks", "appreciate", "grateful",
}

var resolutionPhrases = []string{
	"hope that helps", "hope this helps", "hope that answered",
	"hope this answered", "that should address", "that covers",
	"as requested", "as you asked", "as mentioned",
}

var metaKeywords = []string{
	"conversation", "exchange", "interaction", "discussion",
	"conclude", "conclusion", "end", "finished", "complete",
	"impasse", "loop", "pattern", "test", "scenario",
}
