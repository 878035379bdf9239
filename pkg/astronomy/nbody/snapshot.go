package nbody

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
)

// SnapshotSink receives periodic copies of the body set during a run
type SnapshotSink interface {
	OnStart(totalSteps int, snapEvery int) error
	OnSnapshot(step uint64, bodies []Body) error
	OnEnd(finalStep uint64) error
	Close() error
}

// JSONLSnapshotWriter streams one JSON record per snapshot. Vectors are
// written as decimal strings so the full precision survives.
type JSONLSnapshotWriter struct {
	closer io.Closer
	bw     *bufio.Writer
	digits int
}

type jsonlBody struct {
	ID           string     `json:"id"`
	Position     [3]string  `json:"position"`
	Acceleration [3]string  `json:"acceleration"`
	Render       [3]float32 `json:"render"`
	SpinAngle    float64    `json:"spin_angle,omitempty"`
}

type jsonlSnapshot struct {
	Step   uint64      `json:"step"`
	Bodies []jsonlBody `json:"bodies"`
}

// NewJSONLSnapshotWriter creates (or truncates) path
func NewJSONLSnapshotWriter(path string, digits int) (*JSONLSnapshotWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := NewJSONLSnapshotStream(f, digits)
	w.closer = f
	return w, nil
}

// NewJSONLSnapshotStream writes to w; Close flushes but does not close w
func NewJSONLSnapshotStream(w io.Writer, digits int) *JSONLSnapshotWriter {
	if digits <= 0 {
		digits = 40
	}
	return &JSONLSnapshotWriter{bw: bufio.NewWriter(w), digits: digits}
}

func (w *JSONLSnapshotWriter) OnStart(totalSteps int, snapEvery int) error { return nil }

func (w *JSONLSnapshotWriter) OnSnapshot(step uint64, bodies []Body) error {
	rec := jsonlSnapshot{Step: step, Bodies: make([]jsonlBody, len(bodies))}
	for i, b := range bodies {
		r := b.Position.ToRender()
		rec.Bodies[i] = jsonlBody{
			ID:           b.ID,
			Position:     b.Position.Text(w.digits),
			Acceleration: b.Acceleration.Text(w.digits),
			Render:       [3]float32{r[0], r[1], r[2]},
			SpinAngle:    b.Spin.Angle,
		}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := w.bw.Write(data); err != nil {
		return err
	}
	return w.bw.WriteByte('\n')
}

func (w *JSONLSnapshotWriter) OnEnd(finalStep uint64) error { return w.bw.Flush() }

func (w *JSONLSnapshotWriter) Close() error {
	if w.bw != nil {
		_ = w.bw.Flush()
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
