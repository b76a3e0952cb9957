// Package mysql adapts the mysql-family wire protocol to the framer
// contract, speaking through the go-mysql client the way the server
// itself is spoken to: prepare/execute over the binary protocol, with
// row values re-encoded through the codec registry.
package mysql

import (
	"context"
	"io"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/pingcap/errors"
	"github.com/shopspring/decimal"
	"github.com/siddontang/go-mysql/client"
	gomysql "github.com/siddontang/go-mysql/mysql"

	"github.com/wireql/wireql/pkg/backend"
	"github.com/wireql/wireql/pkg/codec"
	"github.com/wireql/wireql/pkg/config"
	"github.com/wireql/wireql/pkg/proto"
	"github.com/wireql/wireql/pkg/sqlerr"
)

const Scheme = "mysql"

func init() {
	backend.Register(Scheme, driver{})
}

type driver struct{}

func (driver) Open(ctx context.Context, opts *config.Options) (proto.Framer, error) {
	return &framer{opts: opts, reg: newRegistry(), stmts: make(map[uint32]*client.Stmt)}, nil
}

type framer struct {
	opts   *config.Options
	reg    *codec.Registry
	c      *client.Conn
	info   proto.ServerInfo
	stmts  map[uint32]*client.Stmt
	nextID uint32
}

func (f *framer) Connect(ctx context.Context) error {
	addr := f.opts.Addr()
	if f.opts.SocketPath != "" {
		addr = f.opts.SocketPath
	}
	c, err := client.Connect(addr, f.opts.Username, f.opts.Password, f.opts.Database)
	if err != nil {
		return classifyConnect(err)
	}
	f.c = c

	version := ""
	if r, err := c.Execute("SELECT VERSION()"); err == nil {
		version, _ = r.GetString(0, 0)
	}
	f.info = proto.ServerInfo{
		Backend:   "mysql",
		Version:   version,
		ProcessID: c.GetConnectionID(),
	}
	return nil
}

func (f *framer) Prepare(ctx context.Context, query string) (*proto.StatementHandle, error) {
	stmt, err := f.c.Prepare(query)
	if err != nil {
		return nil, classifyQuery(err)
	}
	f.nextID++
	handle := &proto.StatementHandle{
		ID:    f.nextID,
		Query: query,
		// The client does not expose parameter type metadata at prepare
		// time; the slots stay unknown and parameters travel as text.
		Params: make([]codec.TypeInfo, stmt.ParamNum()),
	}
	f.stmts[handle.ID] = stmt
	return handle, nil
}

func (f *framer) Describe(ctx context.Context, query string) (*proto.StatementHandle, error) {
	// No native describe facility; the connection layer falls back to
	// prepare-without-execute.
	return f.Prepare(ctx, query)
}

func (f *framer) Execute(ctx context.Context, stmt *proto.StatementHandle, params [][]byte) (proto.RowBatch, error) {
	st, ok := f.stmts[stmt.ID]
	if !ok {
		return nil, sqlerr.Newf(sqlerr.KindProtocol, "statement %d is not prepared on this connection", stmt.ID)
	}
	args := make([]interface{}, len(params))
	for i, payload := range params {
		if payload == nil {
			args[i] = nil
		} else {
			args[i] = string(payload)
		}
	}
	result, err := st.Execute(args...)
	if err != nil {
		return nil, classifyQuery(err)
	}
	return newBatch(f.reg, result)
}

// Command sends the statement as a plain COM_QUERY. Transaction control
// arrives here: the server refuses to prepare BEGIN, SAVEPOINT and
// ROLLBACK (ER_UNSUPPORTED_PS).
func (f *framer) Command(ctx context.Context, query string) error {
	if _, err := f.c.Execute(query); err != nil {
		return classifyQuery(err)
	}
	return nil
}

func (f *framer) CloseStatement(ctx context.Context, stmt *proto.StatementHandle) error {
	st, ok := f.stmts[stmt.ID]
	if !ok {
		return nil
	}
	delete(f.stmts, stmt.ID)
	if err := st.Close(); err != nil {
		return classifyQuery(err)
	}
	return nil
}

func (f *framer) Ping(ctx context.Context) error {
	if err := f.c.Ping(); err != nil {
		return sqlerr.WithKind(err, sqlerr.KindConnection)
	}
	return nil
}

func (f *framer) Registry() *codec.Registry    { return f.reg }
func (f *framer) ServerInfo() proto.ServerInfo { return f.info }

func (f *framer) Capabilities() proto.Capabilities {
	return proto.Capabilities{
		Savepoints:         true,
		NativeDescribe:     false,
		ExplicitDeallocate: true,
		PreferredFormat:    codec.FormatBinary,
	}
}

func (f *framer) Close() error {
	if f.c == nil {
		return nil
	}
	return f.c.Close()
}

func classifyConnect(err error) error {
	if me, ok := errors.Cause(err).(*gomysql.MyError); ok {
		if me.Code == gomysql.ER_ACCESS_DENIED_ERROR {
			return sqlerr.WithKind(err, sqlerr.KindAuth)
		}
	}
	return sqlerr.WithKind(err, sqlerr.KindConnection)
}

func classifyQuery(err error) error {
	if me, ok := errors.Cause(err).(*gomysql.MyError); ok {
		return sqlerr.NewServerError(uint32(me.Code), me.State, me.Message)
	}
	// Not a server-reported failure: the wire itself is suspect.
	return sqlerr.WithKind(err, sqlerr.KindProtocol)
}

// batch wraps one fully buffered result set. The client reads the whole
// response before returning, so Cancel is always clean.
type batch struct {
	cols     []codec.TypeInfo
	rows     [][][]byte
	next     int
	affected int64
	done     bool
}

func newBatch(reg *codec.Registry, result *gomysql.Result) (*batch, error) {
	b := &batch{affected: int64(result.AffectedRows)}
	if result.Resultset == nil || len(result.Fields) == 0 {
		return b, nil
	}
	b.cols = make([]codec.TypeInfo, len(result.Fields))
	for i, field := range result.Fields {
		b.cols[i] = fieldTypeInfo(reg, field)
	}
	b.rows = make([][][]byte, len(result.Values))
	for i, row := range result.Values {
		encoded := make([][]byte, len(row))
		for j := range row {
			payload, err := encodeFieldValue(reg, b.cols[j], &row[j])
			if err != nil {
				return nil, err
			}
			encoded[j] = payload
		}
		b.rows[i] = encoded
	}
	return b, nil
}

func (b *batch) Columns() []codec.TypeInfo { return b.cols }
func (b *batch) Format() codec.Format      { return codec.FormatBinary }

func (b *batch) Next() (proto.RowData, error) {
	if b.done || b.next >= len(b.rows) {
		b.done = true
		return proto.RowData{}, io.EOF
	}
	row := b.rows[b.next]
	b.next++
	return proto.RowData{Values: row}, nil
}

func (b *batch) Cancel() error {
	b.done = true
	return nil
}

func (b *batch) RowsAffected() int64 { return b.affected }

// encodeFieldValue re-encodes one client field value into the registry's
// binary format under the column's declared kind.
func encodeFieldValue(reg *codec.Registry, ti codec.TypeInfo, fv *gomysql.FieldValue) ([]byte, error) {
	v, err := convertFieldValue(ti, fv)
	if err != nil {
		return nil, err
	}
	if v.IsNull() {
		return nil, nil
	}
	buf, err := reg.Encode(nil, v, ti, codec.FormatBinary)
	if err != nil {
		return nil, err
	}
	if buf == nil {
		buf = []byte{}
	}
	return buf, nil
}

func convertFieldValue(ti codec.TypeInfo, fv *gomysql.FieldValue) (codec.Value, error) {
	switch fv.Type {
	case gomysql.FieldValueTypeNull:
		return codec.Null(ti.Kind), nil
	case gomysql.FieldValueTypeSigned:
		return integerValue(ti.Kind, fv.AsInt64()), nil
	case gomysql.FieldValueTypeUnsigned:
		return unsignedValue(ti.Kind, fv.AsUint64()), nil
	case gomysql.FieldValueTypeFloat:
		if ti.Kind == codec.KindFloat4 {
			return codec.Float4(float32(fv.AsFloat64())), nil
		}
		return codec.Float8(fv.AsFloat64()), nil
	case gomysql.FieldValueTypeString:
		return stringValue(ti.Kind, fv.AsString())
	default:
		return codec.Value{}, sqlerr.Newf(sqlerr.KindProtocol, "unexpected field value type %d", fv.Type)
	}
}

func integerValue(kind codec.Kind, n int64) codec.Value {
	switch kind {
	case codec.KindInt2:
		return codec.Int2(int16(n))
	case codec.KindInt4:
		return codec.Int4(int32(n))
	case codec.KindBool:
		return codec.Bool(n != 0)
	case codec.KindBigInt:
		return codec.BigInt(big.NewInt(n))
	default:
		return codec.Int8(n)
	}
}

// unsignedValue keeps the full unsigned range: columns wide enough to
// exceed int64 are declared KindBigInt by fieldTypeInfo, so no value ever
// wraps negative.
func unsignedValue(kind codec.Kind, n uint64) codec.Value {
	if kind == codec.KindBigInt {
		return codec.BigInt(new(big.Int).SetUint64(n))
	}
	return integerValue(kind, int64(n))
}

const (
	mysqlDateLayout     = "2006-01-02"
	mysqlDateTimeLayout = "2006-01-02 15:04:05.999999"
)

// parseTime reads the server's TIME layout. The type is a signed elapsed
// time, not a clock: hours run to 838 and the whole value may be negative,
// so it cannot go through time.Parse.
func parseTime(s string) (time.Duration, error) {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return 0, errors.Errorf("expected hh:mm:ss, got %q", s)
	}
	h, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || h < 0 {
		return 0, errors.Errorf("bad hours %q", parts[0])
	}
	secPart := parts[2]
	var frac int64
	if i := strings.IndexByte(secPart, '.'); i >= 0 {
		digits := secPart[i+1:]
		secPart = secPart[:i]
		if len(digits) > 6 {
			digits = digits[:6]
		}
		frac, err = strconv.ParseInt(digits, 10, 64)
		if err != nil || frac < 0 {
			return 0, errors.Errorf("bad fractional seconds %q", digits)
		}
		for j := len(digits); j < 6; j++ {
			frac *= 10
		}
	}
	m, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || m < 0 || m > 59 {
		return 0, errors.Errorf("bad minutes %q", parts[1])
	}
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil || sec < 0 || sec > 59 {
		return 0, errors.Errorf("bad seconds %q", secPart)
	}
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(sec)*time.Second + time.Duration(frac)*time.Microsecond
	if neg {
		d = -d
	}
	return d, nil
}

func stringValue(kind codec.Kind, raw []byte) (codec.Value, error) {
	s := string(raw)
	switch kind {
	case codec.KindText:
		return codec.Text(s), nil
	case codec.KindBytes:
		return codec.BytesCopy(raw), nil
	case codec.KindJSON:
		return codec.JSON(raw).Clone(), nil
	case codec.KindDecimal:
		d, err := decimal.NewFromString(s)
		if err != nil {
			return codec.Value{}, sqlerr.Newf(sqlerr.KindProtocol, "server sent invalid decimal %q", s)
		}
		return codec.Decimal(d), nil
	case codec.KindDate:
		t, err := time.ParseInLocation(mysqlDateLayout, s, time.UTC)
		if err != nil {
			return codec.Value{}, sqlerr.Newf(sqlerr.KindProtocol, "server sent invalid date %q", s)
		}
		return codec.Date(t), nil
	case codec.KindTimestamp, codec.KindTimestampTZ:
		t, err := time.ParseInLocation(mysqlDateTimeLayout, s, time.UTC)
		if err != nil {
			return codec.Value{}, sqlerr.Newf(sqlerr.KindProtocol, "server sent invalid datetime %q", s)
		}
		if kind == codec.KindTimestampTZ {
			return codec.TimestampTZ(t), nil
		}
		return codec.Timestamp(t), nil
	case codec.KindTime:
		d, err := parseTime(s)
		if err != nil {
			return codec.Value{}, sqlerr.Newf(sqlerr.KindProtocol, "server sent invalid time %q", s)
		}
		return codec.TimeOfDay(d), nil
	default:
		return codec.Text(s), nil
	}
}
