package store

import (
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	sqlite "modernc.org/sqlite"
	"modernc.org/sqlite/vtab"
)

func init() {
	registerVecCompat()
}

// registerVecCompat installs an in-process vec0 virtual table module and a
// vector_distance_cos scalar function, so ANN search keeps working under
// the pure-Go modernc driver without the cgo sqlite-vec extension.
func registerVecCompat() {
	_ = vtab.RegisterModule(nil, "vec0", &vecModule{})
	_ = sqlite.RegisterDeterministicScalarFunction("vector_distance_cos", 2, vecDistanceCos)
}

// vecModule implements a minimal vec0 virtual table over (embedding,
// conversation_id) rows, held in memory and repopulated by the mirroring
// step on each write to the embeddings table.
type vecModule struct{}

var (
	vecTablesMu sync.RWMutex
	vecTables   = make(map[string]*vecTable)
)

type vecTable struct {
	name      string
	mu        sync.RWMutex
	rows      []vecRow
	nextRowID int64
}

type vecRow struct {
	rowid          int64
	embedding      []byte
	conversationID string
}

func (m *vecModule) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, args)
}

func (m *vecModule) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, args)
}

func (m *vecModule) connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("vec0: insufficient args")
	}
	name := args[2]
	if err := ctx.Declare("CREATE TABLE x(embedding BLOB, conversation_id TEXT)"); err != nil {
		return nil, err
	}

	vecTablesMu.Lock()
	defer vecTablesMu.Unlock()
	tbl, ok := vecTables[name]
	if !ok {
		tbl = &vecTable{name: name, nextRowID: 1}
		vecTables[name] = tbl
	}
	return tbl, nil
}

// BestIndex: no pushdowns; full scan (the corpus this serves is small
// enough — thousands of conversations — that brute-force is fine).
func (t *vecTable) BestIndex(info *vtab.IndexInfo) error {
	info.EstimatedRows = int64(len(t.rows))
	return nil
}

func (t *vecTable) Open() (vtab.Cursor, error) {
	return &vecCursor{tbl: t, idx: -1}, nil
}

func (t *vecTable) Disconnect() error { return nil }
func (t *vecTable) Destroy() error    { return nil }

func (t *vecTable) Insert(cols []vtab.Value, rowid *int64) error {
	if len(cols) < 2 {
		return fmt.Errorf("vec0: insert expects 2 columns")
	}
	emb, err := coerceBlob(cols[0])
	if err != nil {
		return err
	}
	conversationID := toString(cols[1])

	t.mu.Lock()
	defer t.mu.Unlock()
	rid := *rowid
	if rid <= 0 {
		rid = t.nextRowID
		t.nextRowID++
	}
	for i := range t.rows {
		if t.rows[i].rowid == rid {
			t.rows[i] = vecRow{rowid: rid, embedding: emb, conversationID: conversationID}
			*rowid = rid
			return nil
		}
	}
	t.rows = append(t.rows, vecRow{rowid: rid, embedding: emb, conversationID: conversationID})
	*rowid = rid
	return nil
}

func (t *vecTable) Update(oldRowid int64, cols []vtab.Value, newRowid *int64) error {
	if len(cols) < 2 {
		return fmt.Errorf("vec0: update expects 2 columns")
	}
	emb, err := coerceBlob(cols[0])
	if err != nil {
		return err
	}
	conversationID := toString(cols[1])

	t.mu.Lock()
	defer t.mu.Unlock()
	target := oldRowid
	if newRowid != nil && *newRowid > 0 {
		target = *newRowid
	}
	for i := range t.rows {
		if t.rows[i].rowid == oldRowid {
			t.rows[i] = vecRow{rowid: target, embedding: emb, conversationID: conversationID}
			return nil
		}
	}
	t.rows = append(t.rows, vecRow{rowid: target, embedding: emb, conversationID: conversationID})
	if target >= t.nextRowID {
		t.nextRowID = target + 1
	}
	return nil
}

func (t *vecTable) Delete(oldRowid int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.rows {
		if t.rows[i].rowid == oldRowid {
			t.rows = append(t.rows[:i], t.rows[i+1:]...)
			break
		}
	}
	return nil
}

// DeleteWhere removes all rows matching a predicate, used to mirror
// drop_by_model against the in-memory vec_index.
func (t *vecTable) DeleteWhere(match func(conversationID string) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.rows[:0]
	for _, r := range t.rows {
		if !match(r.conversationID) {
			kept = append(kept, r)
		}
	}
	t.rows = kept
}

type vecCursor struct {
	tbl *vecTable
	idx int
}

func (c *vecCursor) Filter(idxNum int, idxStr string, vals []vtab.Value) error {
	c.idx = -1
	return c.Next()
}

func (c *vecCursor) Next() error {
	c.idx++
	return nil
}

func (c *vecCursor) Eof() bool {
	c.tbl.mu.RLock()
	defer c.tbl.mu.RUnlock()
	return c.idx >= len(c.tbl.rows)
}

func (c *vecCursor) Column(col int) (vtab.Value, error) {
	c.tbl.mu.RLock()
	defer c.tbl.mu.RUnlock()
	if c.idx < 0 || c.idx >= len(c.tbl.rows) {
		return nil, fmt.Errorf("vec0: cursor out of range")
	}
	row := c.tbl.rows[c.idx]
	switch col {
	case 0:
		return row.embedding, nil
	case 1:
		return row.conversationID, nil
	default:
		return nil, fmt.Errorf("vec0: invalid column %d", col)
	}
}

func (c *vecCursor) Rowid() (int64, error) {
	c.tbl.mu.RLock()
	defer c.tbl.mu.RUnlock()
	if c.idx < 0 || c.idx >= len(c.tbl.rows) {
		return 0, fmt.Errorf("vec0: cursor out of range")
	}
	return c.tbl.rows[c.idx].rowid, nil
}

func (c *vecCursor) Close() error { return nil }

// vecDistanceCos implements vector_distance_cos(a, b), returning 1-cosine
// so that ORDER BY ascending ranks most-similar first, matching sqlite-vec's
// convention.
func vecDistanceCos(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("vector_distance_cos expects 2 arguments")
	}
	a, err := decodeFloat32(args[0])
	if err != nil {
		return nil, err
	}
	b, err := decodeFloat32(args[1])
	if err != nil {
		return nil, err
	}
	if len(a) == 0 || len(b) == 0 {
		return float64(1), nil
	}
	if len(a) != len(b) {
		return nil, fmt.Errorf("vector_distance_cos: dimension mismatch %d vs %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		af, bf := float64(a[i]), float64(b[i])
		dot += af * bf
		na += af * af
		nb += bf * bf
	}
	if na == 0 || nb == 0 {
		return float64(1), nil
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return float64(1 - cos), nil
}

// decodeFloat32 converts supported driver.Value types into a float32 slice.
func decodeFloat32(v driver.Value) ([]float32, error) {
	if v == nil {
		return nil, nil
	}
	switch x := v.(type) {
	case []byte:
		if len(x)%4 != 0 {
			return nil, fmt.Errorf("vector_distance_cos: blob length %d not multiple of 4", len(x))
		}
		out := make([]float32, len(x)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(x[i*4:]))
		}
		return out, nil
	case string:
		return decodeFloat32([]byte(x))
	case []float32:
		return x, nil
	case []float64:
		out := make([]float32, len(x))
		for i, f := range x {
			out[i] = float32(f)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("vector_distance_cos: unsupported type %T", v)
	}
}

func coerceBlob(v vtab.Value) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		cp := make([]byte, len(x))
		copy(cp, x)
		return cp, nil
	case string:
		return []byte(x), nil
	default:
		return nil, fmt.Errorf("vec0: unsupported embedding type %T", v)
	}
}

func toString(v vtab.Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// encodeFloat32 serializes a float32 vector to the little-endian blob format
// vec0/sqlite-vec expects.
func encodeFloat32(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
