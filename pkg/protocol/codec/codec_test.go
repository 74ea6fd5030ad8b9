package codec

import (
    "testing"
)

func TestJSONCodec(t *testing.T) {
    c := JSON()
    in := map[string]any{"a": 1, "b": "x"}
    b, err := c.Marshal(in)
    if err != nil { t.Fatalf("marshal: %v", err) }
    var out map[string]any
    if err := c.Unmarshal(b, &out); err != nil { t.Fatalf("unmarshal: %v", err) }
    if out["a"].(float64) != 1 || out["b"].(string) != "x" {
        t.Fatalf("roundtrip mismatch: %#v", out)
    }
}

func TestCBORCodec(t *testing.T) {
    c, err := CBOR()
    if err != nil { t.Fatalf("new cbor: %v", err) }
    type msg struct {
        N uint64 `cbor:"n"`
        S string `cbor:"s"`
    }
    in := msg{N: 42, S: "chunk"}
    b, err := c.Marshal(in)
    if err != nil { t.Fatalf("marshal: %v", err) }
    var out msg
    if err := c.Unmarshal(b, &out); err != nil { t.Fatalf("unmarshal: %v", err) }
    if out != in {
        t.Fatalf("roundtrip mismatch: %#v", out)
    }
}

func TestCBORCanonicalStable(t *testing.T) {
    c, err := CBOR()
    if err != nil { t.Fatalf("new cbor: %v", err) }
    in := map[string]uint64{"b": 2, "a": 1, "c": 3}
    b1, err := c.Marshal(in)
    if err != nil { t.Fatalf("marshal: %v", err) }
    b2, err := c.Marshal(in)
    if err != nil { t.Fatalf("marshal: %v", err) }
    if string(b1) != string(b2) {
        t.Fatalf("canonical encoding not stable")
    }
}

func TestRegistry(t *testing.T) {
    r := NewRegistry()
    if r.Get("application/json") == nil {
        t.Fatalf("json codec missing from registry")
    }
    cb, err := CBOR()
    if err != nil { t.Fatalf("new cbor: %v", err) }
    r.Register(cb)
    if r.Get("application/cbor") == nil {
        t.Fatalf("cbor codec missing after register")
    }
    if r.Get("application/x-protobuf") != nil {
        t.Fatalf("unexpected codec present")
    }
}
