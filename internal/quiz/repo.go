package quiz

import "context"

// Store is the persistence boundary used by the HTTP layer.
type Store interface {
	CreateTest(ctx context.Context, userID int64, sourceKey string, g GeneratedTest) (int64, error)
	GetTest(ctx context.Context, testID, userID int64) (TestView, error) // no correctness flags
	ListTests(ctx context.Context, userID int64) ([]TestSummary, error)
	DeleteTest(ctx context.Context, testID, userID int64) error

	CreateAttempt(ctx context.Context, testID, userID int64, answers AnswerSelections) (AttemptResult, error)
	GetAttempt(ctx context.Context, attemptID int64) (AttemptDetail, error)
	ListAttempts(ctx context.Context, testID, userID int64) ([]AttemptSummary, error)
	GetTestMeta(ctx context.Context, testID int64) (TestMeta, error)
}
