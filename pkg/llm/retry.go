package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mendtool/mend/pkg/utils"
)

// ChatWithRetry calls the client and retries transient failures (rate
// limits, timeouts, flaky connections) with exponential backoff.
// Cancellation and non-transient errors stop the attempts immediately.
func ChatWithRetry(ctx context.Context, client Client, messages []Message, onChunk StreamCallback, logger *utils.Logger) (string, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 3 * time.Minute
	return chatWithRetry(ctx, client, messages, onChunk, logger, bo)
}

func chatWithRetry(ctx context.Context, client Client, messages []Message, onChunk StreamCallback, logger *utils.Logger, bo backoff.BackOff) (string, error) {
	var content string
	operation := func() error {
		var err error
		content, err = client.Chat(ctx, messages, onChunk)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if utils.IsTransientError(err) {
			if logger != nil {
				logger.LogProcessStep(fmt.Sprintf("🔄 %s request hit a transient failure, backing off: %v", client.Provider(), err))
			}
			return err
		}
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return "", err
	}
	return content, nil
}
