package grpcsvc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/stockroom/internal/domain"
)

// IdempotencyKeyHeader — metadata-ключ для повторяемых мутаций.
const IdempotencyKeyHeader = "idempotency-key"

type idempotencyErrorPayload struct {
	Code    int32  `json:"code"`
	Message string `json:"message"`
}

type handlerFunc func(ctx context.Context) (*structpb.Struct, error)

// withIdempotency выполняет handler не больше одного раза на idempotency-key.
// Без ключа запрос выполняется как обычно. Повтор с тем же ключом и телом
// получает сохранённый ответ, с другим телом — AlreadyExists, во время обработки — Aborted.
func (s *Service) withIdempotency(ctx context.Context, method string, req *structpb.Struct, handler handlerFunc) (*structpb.Struct, error) {
	key, ok := readIdempotencyKey(ctx)
	if !ok || s.idempotency == nil {
		return handler(ctx)
	}

	hash, err := requestHash(method, req)
	if err != nil {
		s.logger.WithError(err).WithField("method", method).Warn("failed to build idempotency request hash")
		return nil, status.Error(codes.Internal, "failed to initialize idempotency request")
	}

	record, err := s.idempotency.CreateProcessing(key, hash, s.now().Add(domain.IdempotencyTTL))
	if err != nil {
		return s.replay(err, record)
	}

	resp, runErr := handler(ctx)
	if runErr != nil {
		s.storeFailure(key, runErr)
		return nil, runErr
	}
	if err := s.storeSuccess(key, resp); err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent response")
	}
	return resp, nil
}

func (s *Service) replay(createErr error, record domain.IdempotencyRecord) (*structpb.Struct, error) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		return nil, status.Error(codes.AlreadyExists, "idempotency key is already used with different request payload")
	case !errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		s.logger.WithError(createErr).Warn("failed to create idempotency record")
		return nil, status.Error(codes.Internal, "failed to initialize idempotency request")
	}

	switch record.Status {
	case domain.IdempotencyStatusProcessing:
		return nil, status.Error(codes.Aborted, "request with the same idempotency key is already processing")
	case domain.IdempotencyStatusFailed:
		return nil, decodeFailure(record)
	case domain.IdempotencyStatusDone:
		resp := &structpb.Struct{}
		if len(record.ResponseBody) == 0 {
			return resp, nil
		}
		if err := protojson.Unmarshal(record.ResponseBody, resp); err != nil {
			s.logger.WithError(err).WithField("idempotency_key", record.Key).Warn("failed to decode cached response")
			return nil, status.Error(codes.Internal, "failed to decode cached idempotency response")
		}
		return resp, nil
	default:
		return nil, status.Error(codes.Internal, "unknown idempotency record status")
	}
}

func (s *Service) storeSuccess(key string, resp *structpb.Struct) error {
	var body []byte
	if resp != nil {
		data, err := protojson.Marshal(resp)
		if err != nil {
			return err
		}
		body = data
	}
	return s.idempotency.MarkDone(key, body, int(codes.OK))
}

func (s *Service) storeFailure(key string, runErr error) {
	st := status.Convert(runErr)
	code := st.Code()
	if code == codes.OK {
		code = codes.Internal
	}

	payload, err := json.Marshal(idempotencyErrorPayload{Code: int32(code), Message: st.Message()})
	if err != nil {
		payload = nil
	}
	if err := s.idempotency.MarkFailed(key, payload, int(code)); err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotency failure")
	}
}

func decodeFailure(record domain.IdempotencyRecord) error {
	const fallback = "previous request with the same idempotency key failed"

	var payload idempotencyErrorPayload
	if len(record.ResponseBody) > 0 && json.Unmarshal(record.ResponseBody, &payload) == nil {
		if code, ok := validCode(int(payload.Code)); ok {
			if payload.Message == "" {
				payload.Message = fallback
			}
			return status.Error(code, payload.Message)
		}
	}
	if code, ok := validCode(record.ResponseCode); ok {
		return status.Error(code, fallback)
	}
	return status.Error(codes.Internal, fallback)
}

// validCode принимает только ненулевые коды из диапазона gRPC.
func validCode(value int) (codes.Code, bool) {
	if value <= int(codes.OK) || value > int(codes.Unauthenticated) {
		return codes.Internal, false
	}
	return codes.Code(uint32(value)), true
}

func readIdempotencyKey(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}
	for _, value := range md.Get(IdempotencyKeyHeader) {
		if key := strings.TrimSpace(value); key != "" {
			return key, true
		}
	}
	return "", false
}

func requestHash(method string, req proto.Message) (string, error) {
	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(req)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{':'})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}
