package kafkabus

import (
	"context"
	"errors"
	"net"

	"github.com/segmentio/kafka-go"

	"github.com/kirillkom/patent-pod-intake/internal/core/domain"
	"github.com/kirillkom/patent-pod-intake/internal/infrastructure/resilience"
)

// classifyKafkaError retries broker codes Kafka marks retriable and network
// failures. A single-message batch reports through WriteErrors.
func classifyKafkaError(err error) resilience.ErrorClassification {
	var batch kafka.WriteErrors
	if errors.As(err, &batch) {
		for _, e := range batch {
			if e != nil {
				return classifyKafkaError(e)
			}
		}
	}

	var code kafka.Error
	var netErr net.Error
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	case errors.As(err, &code):
		if code.Temporary() {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{}
	case errors.As(err, &netErr):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

func wrapTemporaryIfNeeded(err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyKafkaError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "publish application committed", err)
	}
	return err
}
