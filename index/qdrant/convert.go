package qdrant

import (
	"fmt"
	"time"

	"github.com/poiesic/vecload/core"
	"github.com/poiesic/vecload/index"
	qd "github.com/qdrant/go-client/qdrant"
)

var distances = map[core.Distance]qd.Distance{
	core.DistanceCosine: qd.Distance_Cosine,
	core.DistanceDot:    qd.Distance_Dot,
	core.DistanceEuclid: qd.Distance_Euclid,
}

func toDistance(d core.Distance) qd.Distance {
	if distance, ok := distances[d]; ok {
		return distance
	}
	return qd.Distance_Cosine
}

func fromDistance(d qd.Distance) core.Distance {
	for distance, value := range distances {
		if value == d {
			return distance
		}
	}
	return core.Distance(d.String())
}

func hnswConfig(params core.IndexParams) *qd.HnswConfigDiff {
	return &qd.HnswConfigDiff{
		M:      qd.PtrOf(uint64(params.M)),
		OnDisk: qd.PtrOf(params.OnDisk),
	}
}

func toCreateRequest(cfg core.CollectionConfig) *qd.CreateCollection {
	req := &qd.CreateCollection{
		CollectionName: cfg.Name,
		VectorsConfig: qd.NewVectorsConfig(&qd.VectorParams{
			Size:     uint64(cfg.Dimension),
			Distance: toDistance(cfg.Distance),
			OnDisk:   qd.PtrOf(cfg.OnDiskVectors),
		}),
		HnswConfig: hnswConfig(cfg.Index),
	}
	if cfg.MaxSegmentSize > 0 {
		req.OptimizersConfig = &qd.OptimizersConfigDiff{
			MaxSegmentSize: qd.PtrOf(uint64(cfg.MaxSegmentSize)),
		}
	}
	if cfg.Quantization.Binary {
		req.QuantizationConfig = qd.NewQuantizationBinary(&qd.BinaryQuantization{
			AlwaysRam: qd.PtrOf(cfg.Quantization.AlwaysRAM),
		})
	}
	return req
}

func toCollectionInfo(name string, info *qd.CollectionInfo) *core.CollectionInfo {
	config := info.GetConfig()
	vectors := config.GetParams().GetVectorsConfig().GetParams()
	hnsw := config.GetHnswConfig()

	cfg := core.CollectionConfig{
		Name:           name,
		Dimension:      int(vectors.GetSize()),
		Distance:       fromDistance(vectors.GetDistance()),
		OnDiskVectors:  vectors.GetOnDisk(),
		MaxSegmentSize: int(config.GetOptimizerConfig().GetMaxSegmentSize()),
		Index: core.IndexParams{
			M:      int(hnsw.GetM()),
			OnDisk: hnsw.GetOnDisk(),
		},
	}
	if binary := config.GetQuantizationConfig().GetBinary(); binary != nil {
		cfg.Quantization = core.QuantizationConfig{Binary: true, AlwaysRAM: binary.GetAlwaysRam()}
	}
	return &core.CollectionInfo{Config: cfg, PointCount: int64(info.GetPointsCount())}
}

// toPoints converts an upload batch into point structs.
func toPoints(batch index.Batch) ([]*qd.PointStruct, error) {
	points := make([]*qd.PointStruct, batch.Len())
	for i, id := range batch.Ids {
		point := &qd.PointStruct{
			Id:      qd.NewIDNum(id),
			Vectors: qd.NewVectorsDense(batch.Vectors[i]),
		}
		if payload := batch.Payload(i); payload != nil {
			values, err := toValueMap(payload)
			if err != nil {
				return nil, fmt.Errorf("%w: point %d payload: %w", index.ErrInvalidBatch, id, err)
			}
			point.Payload = values
		}
		points[i] = point
	}
	return points, nil
}

func toValueMap(payload core.Payload) (map[string]*qd.Value, error) {
	values := make(map[string]*qd.Value, len(payload))
	for key, v := range payload {
		value, err := toValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		values[key] = value
	}
	return values, nil
}

// toValue widens the column types metadata readers produce to the
// kinds go-client accepts.
func toValue(v any) (*qd.Value, error) {
	switch v := v.(type) {
	case int8:
		return qd.NewValueInt(int64(v)), nil
	case int16:
		return qd.NewValueInt(int64(v)), nil
	case uint8:
		return qd.NewValueInt(int64(v)), nil
	case uint16:
		return qd.NewValueInt(int64(v)), nil
	case time.Time:
		return qd.NewValueString(v.UTC().Format(time.RFC3339Nano)), nil
	case core.Payload:
		return toValue(map[string]any(v))
	case []string:
		list := make([]*qd.Value, len(v))
		for i, s := range v {
			list[i] = qd.NewValueString(s)
		}
		return qd.NewValueFromList(list...), nil
	}
	return qd.NewValue(v)
}

func fromValueMap(values map[string]*qd.Value) core.Payload {
	if len(values) == 0 {
		return nil
	}
	payload := make(core.Payload, len(values))
	for key, value := range values {
		payload[key] = fromValue(value)
	}
	return payload
}

func fromValue(v *qd.Value) any {
	switch kind := v.GetKind().(type) {
	case *qd.Value_BoolValue:
		return kind.BoolValue
	case *qd.Value_IntegerValue:
		return kind.IntegerValue
	case *qd.Value_DoubleValue:
		return kind.DoubleValue
	case *qd.Value_StringValue:
		return kind.StringValue
	case *qd.Value_StructValue:
		fields := make(map[string]any, len(kind.StructValue.GetFields()))
		for key, field := range kind.StructValue.GetFields() {
			fields[key] = fromValue(field)
		}
		return fields
	case *qd.Value_ListValue:
		list := make([]any, len(kind.ListValue.GetValues()))
		for i, item := range kind.ListValue.GetValues() {
			list[i] = fromValue(item)
		}
		return list
	}
	return nil
}
