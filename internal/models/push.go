package models

// TopicResult reports how many tokens a topic membership change applied to.
type TopicResult struct {
	SuccessCount int `json:"success_count"`
	FailureCount int `json:"failure_count"`
}
