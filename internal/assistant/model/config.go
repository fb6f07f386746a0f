package model

// ================ Config ================

// ChatConfig bounds a single assistant turn and its pending actions.
type ChatConfig struct {
	// MaxToolRounds caps model round trips within one chat turn. The loop
	// self-terminates after this many rounds regardless of model behavior.
	MaxToolRounds int `envconfig:"CHAT_MAX_TOOL_ROUNDS" default:"5"`
	// HistoryMaxMessages caps the conversation history handed to the model.
	HistoryMaxMessages int `envconfig:"CHAT_HISTORY_MAX_MESSAGES" default:"20"`
	// PendingActionTTL is how long a parked write action stays confirmable.
	PendingActionTTL string `envconfig:"CHAT_PENDING_ACTION_TTL" default:"300s"`
	// HistoryTTL is how long stored conversation history survives between turns.
	HistoryTTL string `envconfig:"CHAT_HISTORY_TTL" default:"24h"`
}

// AssistantModelConfig configures the tool-calling chat model.
type AssistantModelConfig struct {
	Model       string  `envconfig:"ASSISTANT_MODEL" default:"gemini-2.0-flash"`
	MaxTokens   int     `envconfig:"ASSISTANT_MAX_TOKENS" default:"4000"`
	Temperature float32 `envconfig:"ASSISTANT_TEMPERATURE" default:"0.3"`
}

// SearchModelConfig configures the independent web-search model call.
type SearchModelConfig struct {
	Model    string `envconfig:"SEARCH_MODEL" default:"gemini-2.0-flash"`
	MaxChars int    `envconfig:"SEARCH_MAX_CHARS" default:"4000"`
}
