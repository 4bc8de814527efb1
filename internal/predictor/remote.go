package predictor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yourusername/race-edge/internal/features"
	"github.com/yourusername/race-edge/internal/metrics"
)

// PredictMethod is the unary RPC the remote model server exposes. Request
// and response are google.protobuf.Struct documents.
const PredictMethod = "/raceedge.predictor.v1.Predictor/Predict"

// RemoteConfig configures the gRPC predictor client
type RemoteConfig struct {
	Address      string
	ModelVersion string
	Timeout      time.Duration
}

// RemoteClient calls a model served over gRPC
type RemoteClient struct {
	conn    *grpc.ClientConn
	cfg     RemoteConfig
	logger  logrus.FieldLogger
	timeout time.Duration
}

// NewRemoteClient creates a client. Extra dial options are appended to the
// defaults.
func NewRemoteClient(cfg RemoteConfig, logger logrus.FieldLogger, opts ...grpc.DialOption) (*RemoteClient, error) {
	connectParams := grpc.ConnectParams{
		Backoff: backoff.Config{
			BaseDelay:  1 * time.Second,
			Multiplier: 1.6,
			Jitter:     0.2,
			MaxDelay:   5 * time.Second,
		},
		MinConnectTimeout: 10 * time.Second,
	}
	keepAlive := keepalive.ClientParameters{
		Time:                30 * time.Second,
		Timeout:             10 * time.Second,
		PermitWithoutStream: true,
	}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithConnectParams(connectParams),
		grpc.WithKeepaliveParams(keepAlive),
	}, opts...)

	conn, err := grpc.NewClient(cfg.Address, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	logger.WithField("address", cfg.Address).Info("Remote predictor configured")
	return &RemoteClient{conn: conn, cfg: cfg, logger: logger, timeout: timeout}, nil
}

// Predict sends the vector and decodes the probabilities
func (c *RemoteClient) Predict(ctx context.Context, fv features.Vector) (Prediction, error) {
	start := time.Now()
	defer func() {
		metrics.RecordPredictionLatency("grpc", time.Since(start).Seconds())
	}()

	req, err := encodeRequest(fv, c.cfg.ModelVersion)
	if err != nil {
		return Prediction{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, PredictMethod, req, resp); err != nil {
		metrics.RecordPredictionError("grpc")
		c.logger.WithError(err).WithField("race_id", fv.RaceID).Error("Remote prediction failed")
		return Prediction{}, fmt.Errorf("%w: %v", ErrInvalidPrediction, err)
	}

	p, err := decodeResponse(resp)
	if err != nil {
		metrics.RecordPredictionError("grpc")
		return Prediction{}, err
	}
	metrics.RecordPrediction("grpc")
	return p, nil
}

// Close releases the connection
func (c *RemoteClient) Close() error {
	return c.conn.Close()
}

func encodeRequest(fv features.Vector, version string) (*structpb.Struct, error) {
	feats := make(map[string]interface{}, len(features.Schema))
	for name, v := range fv.Values() {
		if v == nil {
			feats[string(name)] = nil
		} else {
			feats[string(name)] = *v
		}
	}
	req, err := structpb.NewStruct(map[string]interface{}{
		"schema":        features.SchemaVersion,
		"model_version": version,
		"race_id":       fv.RaceID,
		"horse_id":      fv.HorseID,
		"features":      feats,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode prediction request: %w", err)
	}
	return req, nil
}

func decodeResponse(resp *structpb.Struct) (Prediction, error) {
	fields := resp.GetFields()
	win, ok := fields["win"]
	if !ok {
		return Prediction{}, fmt.Errorf("%w: response has no win probability", ErrInvalidPrediction)
	}
	if _, isNum := win.GetKind().(*structpb.Value_NumberValue); !isNum {
		return Prediction{}, fmt.Errorf("%w: win probability is not a number", ErrInvalidPrediction)
	}
	p := Prediction{Win: win.GetNumberValue()}
	if top3, ok := fields["top3"]; ok {
		if _, isNum := top3.GetKind().(*structpb.Value_NumberValue); isNum {
			t := top3.GetNumberValue()
			p.Top3 = &t
		}
	}
	return p, p.Validate()
}
