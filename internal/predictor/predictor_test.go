package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yourusername/race-edge/internal/detailcache"
	"github.com/yourusername/race-edge/internal/entrystore"
	"github.com/yourusername/race-edge/internal/features"
	"github.com/yourusername/race-edge/internal/logger"
	"github.com/yourusername/race-edge/internal/models"
	"github.com/yourusername/race-edge/internal/stats"
)

var raceDay = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

// vector builds a real vector for a debutant: only class_level is present
func vector(t *testing.T, raceID, horseID string) features.Vector {
	t.Helper()
	snap := stats.Compute(entrystore.New(nil), raceDay, stats.DefaultThresholds())
	cache := detailcache.New()
	entry := models.EntryRecord{RaceID: raceID, HorseID: horseID, Date: raceDay, RaceName: "Japan Derby (G1)"}
	fv, err := features.NewComposer(snap, cache).Compose(entry, features.ConditionsOf(entry))
	require.NoError(t, err)
	return fv
}

func TestModelVectorImputes(t *testing.T) {
	m := Model{
		Features:   []string{"class_level", "time_index"},
		Imputation: map[string]float64{"time_index": 50},
	}
	require.NoError(t, m.Validate())

	x := m.Vector(vector(t, "R1", "H1"))
	assert.Equal(t, []float64{float64(stats.ClassG1), 50}, x)
}

func TestModelValidateRejectsUnknownFeature(t *testing.T) {
	err := Model{Features: []string{"speed_figure"}}.Validate()
	assert.ErrorIs(t, err, ErrInvalidModel)
	assert.ErrorIs(t, err, features.ErrUnknownFeature)
}

func TestLinearModelFromFile(t *testing.T) {
	doc := map[string]interface{}{
		"version":    "lin-1",
		"features":   []string{"class_level", "time_index"},
		"imputation": map[string]float64{"time_index": 50},
		"win":        map[string]interface{}{"intercept": -1.0, "weights": []float64{0.5, 0.0}},
		"top3":       map[string]interface{}{"intercept": 0.0, "weights": []float64{0.0, 0.0}},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	m, err := LoadLinearModel(path)
	require.NoError(t, err)
	assert.Equal(t, "lin-1", m.Version)

	p, err := m.Predict(context.Background(), vector(t, "R1", "H1"))
	require.NoError(t, err)
	// class level 8: sigmoid(-1 + 4)
	assert.InDelta(t, 1/(1+math.Exp(-3)), p.Win, 1e-12)
	require.NotNil(t, p.Top3)
	assert.InDelta(t, 0.5, *p.Top3, 1e-12)
}

func TestLinearModelWeightMismatch(t *testing.T) {
	m := &LinearModel{
		Model: Model{Features: []string{"class_level"}},
		Win:   Logit{Weights: []float64{1, 2}},
	}
	assert.ErrorIs(t, m.Validate(), ErrInvalidModel)
}

func TestPredictionValidate(t *testing.T) {
	bad := 1.2
	assert.NoError(t, Prediction{Win: 0.3}.Validate())
	assert.Error(t, Prediction{Win: -0.1}.Validate())
	assert.Error(t, Prediction{Win: 0.1, Top3: &bad}.Validate())
	assert.Error(t, Prediction{Win: math.NaN()}.Validate())
}

type mockPredictor struct {
	mock.Mock
}

func (m *mockPredictor) Predict(ctx context.Context, fv features.Vector) (Prediction, error) {
	args := m.Called(ctx, fv.HorseID)
	return args.Get(0).(Prediction), args.Error(1)
}

func TestCachedMemoises(t *testing.T) {
	next := new(mockPredictor)
	next.On("Predict", mock.Anything, "H1").Return(Prediction{Win: 0.25}, nil).Once()
	next.On("Predict", mock.Anything, "H2").Return(Prediction{}, errors.New("boom")).Twice()

	c := NewCached(next, "v1", time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p, err := c.Predict(ctx, vector(t, "R1", "H1"))
		require.NoError(t, err)
		assert.Equal(t, 0.25, p.Win)
	}
	// errors are not cached
	for i := 0; i < 2; i++ {
		_, err := c.Predict(ctx, vector(t, "R1", "H2"))
		assert.Error(t, err)
	}

	hits, misses, ratio := c.Stats()
	assert.Equal(t, uint64(2), hits)
	assert.Equal(t, uint64(3), misses)
	assert.InDelta(t, 0.4, ratio, 1e-9)
	next.AssertExpectations(t)

	c.Clear()
	hits, _, _ = c.Stats()
	assert.Zero(t, hits)
}

func TestCacheKeyString(t *testing.T) {
	key := CacheKey{RaceID: "202405020811", HorseID: "2019104308", ModelVersion: "1.0"}
	assert.Equal(t, "202405020811:2019104308:1.0", key.String())
}

func startModelServer(t *testing.T, handler func(req *structpb.Struct) (*structpb.Struct, error)) *bufconn.Listener {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnknownServiceHandler(func(_ interface{}, stream grpc.ServerStream) error {
		method, _ := grpc.MethodFromServerStream(stream)
		assert.Equal(t, PredictMethod, method)
		req := new(structpb.Struct)
		if err := stream.RecvMsg(req); err != nil {
			return err
		}
		resp, err := handler(req)
		if err != nil {
			return err
		}
		return stream.SendMsg(resp)
	}))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return lis
}

func remoteClient(t *testing.T, lis *bufconn.Listener) *RemoteClient {
	t.Helper()
	c, err := NewRemoteClient(
		RemoteConfig{Address: "passthrough:///bufnet", ModelVersion: "gbm-7", Timeout: 2 * time.Second},
		logger.Discard(),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRemoteClientPredict(t *testing.T) {
	lis := startModelServer(t, func(req *structpb.Struct) (*structpb.Struct, error) {
		f := req.GetFields()
		assert.Equal(t, "H7", f["horse_id"].GetStringValue())
		assert.Equal(t, "gbm-7", f["model_version"].GetStringValue())
		feats := f["features"].GetStructValue().GetFields()
		assert.Equal(t, float64(stats.ClassG1), feats["class_level"].GetNumberValue())
		_, isNull := feats["time_index"].GetKind().(*structpb.Value_NullValue)
		assert.True(t, isNull, "missing features travel as null")
		return structpb.NewStruct(map[string]interface{}{"win": 0.31, "top3": 0.72})
	})

	p, err := remoteClient(t, lis).Predict(context.Background(), vector(t, "R1", "H7"))
	require.NoError(t, err)
	assert.Equal(t, 0.31, p.Win)
	require.NotNil(t, p.Top3)
	assert.Equal(t, 0.72, *p.Top3)
}

func TestRemoteClientRejectsBadResponse(t *testing.T) {
	lis := startModelServer(t, func(*structpb.Struct) (*structpb.Struct, error) {
		return structpb.NewStruct(map[string]interface{}{"win": 1.7})
	})

	_, err := remoteClient(t, lis).Predict(context.Background(), vector(t, "R1", "H1"))
	assert.ErrorIs(t, err, ErrInvalidPrediction)
}
