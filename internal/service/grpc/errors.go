package grpcsvc

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/stockroom/internal/domain"
)

// toStatus переводит доменную ошибку в gRPC статус. Внутренние ошибки логируются,
// клиент получает только общее сообщение.
func (s *Service) toStatus(err error, operation string) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	// Ошибка компенсации оборачивает и причину, поэтому проверяется первой.
	switch {
	case errors.Is(err, domain.ErrStockDecrementFailed):
		s.logger.WithError(err).WithField("operation", operation).Error("order compensated")
		return status.Error(codes.Internal, "order could not be fulfilled and was cancelled")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, domain.ErrProductNotFound), errors.Is(err, domain.ErrOrderNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrProductInvalid),
		errors.Is(err, domain.ErrOrderStatusInvalid),
		errors.Is(err, domain.ErrOrderRejected):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrCollectionVersionConflict):
		return status.Error(codes.Aborted, "concurrent modification, retry the request")
	default:
		s.logger.WithError(err).WithFields(log.Fields{"operation": operation}).Error("request failed")
		return status.Error(codes.Internal, "internal error")
	}
}
