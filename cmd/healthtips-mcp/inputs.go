package main

// Input types for MCP tools. The SDK infers JSON Schema from these structs.

type tipsSearchInput struct {
	Query string `json:"query" jsonschema:"Text to look for in tip titles and categories. Case-insensitive substring match."`
}

type tipGetInput struct {
	ID int `json:"id" jsonschema:"The tip ID"`
}

type emailInput struct {
	Email string `json:"email" jsonschema:"Email address of a registered user"`
}

type emptyInput struct{}
