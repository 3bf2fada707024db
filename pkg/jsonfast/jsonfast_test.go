package jsonfast

import (
	"encoding/json"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("with positive capacity", func(t *testing.T) {
		b := New(512)
		if b == nil {
			t.Fatal("New() returned nil")
		}
		if cap(b.buf) < 512 {
			t.Errorf("Expected capacity >= 512, got %d", cap(b.buf))
		}
	})

	t.Run("with zero capacity", func(t *testing.T) {
		b := New(0)
		if b == nil {
			t.Fatal("New() returned nil")
		}
		if cap(b.buf) < 256 {
			t.Errorf("Expected default capacity >= 256, got %d", cap(b.buf))
		}
	})

	t.Run("with negative capacity", func(t *testing.T) {
		b := New(-10)
		if b == nil {
			t.Fatal("New() returned nil")
		}
		if cap(b.buf) < 256 {
			t.Errorf("Expected default capacity >= 256, got %d", cap(b.buf))
		}
	})
}

func TestReset(t *testing.T) {
	b := New(256)
	b.BeginObject()
	b.AddStringField("test", "value")
	b.EndObject()

	if len(b.Bytes()) == 0 {
		t.Error("Expected non-empty buffer before reset")
	}

	b.Reset()

	if len(b.Bytes()) != 0 {
		t.Errorf("Expected empty buffer after reset, got length %d", len(b.Bytes()))
	}
	if b.opened {
		t.Error("Expected opened=false after reset")
	}
	if !b.first {
		t.Error("Expected first=true after reset")
	}
}

func TestAddStringField(t *testing.T) {
	tests := getStringFieldTestCases()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runStringFieldTest(t, tt)
		})
	}
}

func getStringFieldTestCases() []stringFieldTest {
	return []stringFieldTest{
		{name: "simple string", key: "message", value: "hello world", expected: `{"message":"hello world"}`},
		{name: "empty string", key: "empty", value: "", expected: `{"empty":""}`},
		{name: "string with quotes", key: "quoted", value: `she said "hello"`, expected: `{"quoted":"she said \"hello\""}`},
		{name: "string with backslash", key: "path", value: `C:\Users\Test`, expected: `{"path":"C:\\Users\\Test"}`},
		{name: "string with newline", key: "multiline", value: "line1\nline2", expected: `{"multiline":"line1\nline2"}`},
		{name: "string with tab", key: "tabbed", value: "col1\tcol2", expected: `{"tabbed":"col1\tcol2"}`},
	}
}

type stringFieldTest struct {
	name     string
	key      string
	value    string
	expected string
}

func runStringFieldTest(t *testing.T, tt stringFieldTest) {
	t.Helper()
	b := New(256)
	b.BeginObject()
	b.AddStringField(tt.key, tt.value)
	b.EndObject()

	result := string(b.Bytes())
	if result != tt.expected {
		t.Errorf("Expected %s, got %s", tt.expected, result)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(b.Bytes(), &parsed); err != nil {
		t.Errorf("Generated invalid JSON: %v", err)
	}
}

func TestAddIntField(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    int
		expected string
	}{
		{
			name:     "positive int",
			key:      "count",
			value:    42,
			expected: `{"count":42}`,
		},
		{
			name:     "zero",
			key:      "zero",
			value:    0,
			expected: `{"zero":0}`,
		},
		{
			name:     "negative int",
			key:      "negative",
			value:    -123,
			expected: `{"negative":-123}`,
		},
		{
			name:     "large number",
			key:      "large",
			value:    999999,
			expected: `{"large":999999}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(256)
			b.BeginObject()
			b.AddIntField(tt.key, tt.value)
			b.EndObject()

			result := string(b.Bytes())
			if result != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, result)
			}

			// Verify it's valid JSON
			var parsed map[string]interface{}
			if err := json.Unmarshal(b.Bytes(), &parsed); err != nil {
				t.Errorf("Generated invalid JSON: %v", err)
			}
		})
	}
}

func TestMultipleFields(t *testing.T) {
	b := New(256)
	b.BeginObject()
	b.AddStringField("name", "John")
	b.AddIntField("age", 30)
	b.AddStringField("city", "New York")
	b.EndObject()

	expected := `{"name":"John","age":30,"city":"New York"}`
	result := string(b.Bytes())

	if result != expected {
		t.Errorf("Expected %s, got %s", expected, result)
	}

	// Verify it's valid JSON and has correct values
	var parsed map[string]interface{}
	if err := json.Unmarshal(b.Bytes(), &parsed); err != nil {
		t.Fatalf("Generated invalid JSON: %v", err)
	}

	if parsed["name"] != "John" {
		t.Errorf("Expected name=John, got %v", parsed["name"])
	}
	if parsed["age"] != float64(30) {
		t.Errorf("Expected age=30, got %v", parsed["age"])
	}
}

func TestEscapeString(t *testing.T) {
	tests := getEscapeStringTestCases()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testEscapeStringCase(t, tt)
		})
	}
}

func getEscapeStringTestCases() []escapeStringTest {
	return []escapeStringTest{
		{name: "no escape needed", input: "hello world", expected: "hello world"},
		{name: "quote", input: `say "hi"`, expected: `say \"hi\"`},
		{name: "backslash", input: `path\to\file`, expected: `path\\to\\file`},
		{name: "newline", input: "line1\nline2", expected: `line1\nline2`},
		{name: "tab", input: "col1\tcol2", expected: `col1\tcol2`},
		{name: "carriage return", input: "line1\rline2", expected: `line1\rline2`},
		{name: "backspace", input: "text\bback", expected: `text\bback`},
		{name: "form feed", input: "page\fbreak", expected: `page\fbreak`},
	}
}

type escapeStringTest struct {
	name     string
	input    string
	expected string
}

func testEscapeStringCase(t *testing.T, tt escapeStringTest) {
	t.Helper()
	b := New(256)
	b.buf = append(b.buf, '"')
	b.escapeString(tt.input)
	b.buf = append(b.buf, '"')

	result := string(b.buf[1 : len(b.buf)-1])
	if result != tt.expected {
		t.Errorf("Expected %q, got %q", tt.expected, result)
	}
}

func TestComplexJSON(t *testing.T) {
	b := New(512)
	b.BeginObject()
	b.AddStringField("topic", "devices/42/telemetry")
	b.AddIntField("payload_bytes", 128)
	b.AddStringField("raw", "some payload text")
	b.EndObject()

	result := b.Bytes()

	var parsed map[string]interface{}
	if err := json.Unmarshal(result, &parsed); err != nil {
		t.Fatalf("Generated invalid JSON: %v", err)
	}

	if parsed["topic"] != "devices/42/telemetry" {
		t.Errorf("Expected topic=devices/42/telemetry, got %v", parsed["topic"])
	}
	if parsed["payload_bytes"] != float64(128) {
		t.Errorf("Expected payload_bytes=128, got %v", parsed["payload_bytes"])
	}
}

func BenchmarkBuilder(b *testing.B) {
	b.Run("AddStringField", func(b *testing.B) {
		builder := New(256)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			builder.Reset()
			builder.BeginObject()
			builder.AddStringField("key1", "value1")
			builder.AddStringField("key2", "value2")
			builder.AddStringField("key3", "value3")
			builder.EndObject()
			_ = builder.Bytes()
		}
	})

	b.Run("vs json.Marshal", func(b *testing.B) {
		type TestStruct struct {
			Topic        string `json:"topic"`
			PayloadBytes int    `json:"payload_bytes"`
		}

		data := TestStruct{
			Topic:        "devices/42/telemetry",
			PayloadBytes: 128,
		}

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, _ = json.Marshal(data)
		}
	})
}
