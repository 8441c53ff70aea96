package csvimport

import (
	"strings"
	"testing"

	"github.com/marketplace-analytics/backend/internal/domain/sales"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestRepairer() *Repairer {
	return NewRepairer(RepairConfig{Keys: DefaultKeyColumns}, zap.NewNop())
}

func TestRepair(t *testing.T) {
	r := newTestRepairer()

	tests := []struct {
		name      string
		line      string
		wantLines []string
		wantCodes []string
	}{
		{
			name:      "well-formed line is unchanged",
			line:      "01.03.2024,WB-100,Куртка мужская,1500,2",
			wantLines: []string{"01.03.2024,WB-100,Куртка мужская,1500,2"},
		},
		{
			name:      "leading garbage is discarded",
			line:      "мусор 01.03.2024,WB-100,Шапка,700,1",
			wantLines: []string{"01.03.2024,WB-100,Шапка,700,1"},
		},
		{
			name:      "no date token",
			line:      "итого,WB-100,Шапка,700,1",
			wantCodes: []string{ErrCodeImportNoDateToken},
		},
		{
			name:      "too few fields",
			line:      "01.03.2024,WB-100,Шапка",
			wantCodes: []string{ErrCodeImportTooFewFields},
		},
		{
			name: "merged rows are split",
			line: "01.03.2024,WB-100,Куртка,1500,2,02.03.2024,WB-200,Шапка,700,1",
			wantLines: []string{
				"01.03.2024,WB-100,Куртка,1500,2",
				"02.03.2024,WB-200,Шапка,700,1",
			},
		},
		{
			name:      "name text in sku",
			line:      "01.03.2024,Куртка мужская зимняя,Куртка,1500,2",
			wantCodes: []string{ErrCodeImportCorruptField},
		},
		{
			name: "merged row with corrupted sku keeps the good half",
			line: "01.03.2024,WB-100,Куртка,1500,2,02.03.2024,Шапка синяя,Шапка,700,1",
			wantLines: []string{
				"01.03.2024,WB-100,Куртка,1500,2",
			},
			wantCodes: []string{ErrCodeImportCorruptField},
		},
		{
			name:      "tab fragments are converted",
			line:      "01.03.2024\tWB-100\tШапка,700,1",
			wantLines: []string{"01.03.2024,WB-100,Шапка,700,1"},
		},
		{
			name:      "stray quotes are repaired",
			line:      `01.03.2024,WB-100,Куртка "Зима",1500,2`,
			wantLines: []string{`01.03.2024,WB-100,"Куртка ""Зима""",1500,2`},
		},
		{
			name:      "date inside name is not a row boundary",
			line:      "01.03.2024,WB-100,Шапка от 02.03.2024,700,1",
			wantLines: []string{"01.03.2024,WB-100,Шапка от,700,1"},
		},
		{
			name:      "name empty after cleanup",
			line:      `01.03.2024,WB-100,", 100, 200",700,1`,
			wantCodes: []string{ErrCodeImportCorruptField},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := r.Repair(tt.line)

			assert.Equal(t, tt.wantLines, out.Lines)
			codes := make([]string, 0, len(out.Drops))
			for _, d := range out.Drops {
				codes = append(codes, d.Code)
				assert.NotEmpty(t, d.Stage)
				assert.NotEmpty(t, d.Reason)
			}
			if tt.wantCodes == nil {
				assert.Empty(t, codes)
			} else {
				assert.Equal(t, tt.wantCodes, codes)
			}
		})
	}
}

func TestRepairLogsDrops(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := NewRepairer(RepairConfig{}, zap.New(core))

	out := r.Repair("no date here,a,b,c,d")

	assert.Empty(t, out.Lines)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Dropped import line", entry.Message)
	assert.Equal(t, StageLineValidity, entry.ContextMap()["stage"])
	assert.Equal(t, "no date here,a,b,c,d", entry.ContextMap()["line_prefix"])
}

func TestCheckKeyFields(t *testing.T) {
	r := newTestRepairer()

	tests := []struct {
		name   string
		line   string
		reason string
	}{
		{"valid", "01.03.2024,WB-1,Шапка,700,1", ""},
		{"unterminated quote in sku", `01.03.2024,"WB-1,Шапка,700,1`, "sku field has an unterminated quote"},
		{"empty sku", "01.03.2024,,Шапка,700,1", "sku field is empty"},
		{"overlong sku", "01.03.2024," + strings.Repeat("A", 51) + ",Шапка,700,1", "sku field is longer than 50 characters"},
		{"brand in sku", "01.03.2024,Samsung Galaxy,Телефон,700,1", "sku field holds product name text"},
		{"missing sku", "01.03.2024", "sku field is missing"},
		{"empty date", ",WB-1,Шапка,700,1", "date field is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := r.CheckKeyFields(tt.line)
			if tt.reason == "" {
				assert.Nil(t, d)
				return
			}
			require.NotNil(t, d)
			assert.Equal(t, StageKeyFields, d.Stage)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}

	t.Run("custom noise tokens", func(t *testing.T) {
		custom := NewRepairer(RepairConfig{Keys: DefaultKeyColumns, Noise: sales.NewNoiseList("гирлянд")}, nil)
		assert.NotNil(t, custom.CheckKeyFields("01.03.2024,Гирлянда,Гирлянда,700,1"))
	})

	t.Run("unknown key columns are skipped", func(t *testing.T) {
		none := NewRepairer(RepairConfig{Keys: KeyColumns{Date: -1, SKU: -1, Name: -1}}, nil)
		assert.Nil(t, none.CheckKeyFields(",,Шапка,700,1"))
	})
}

func TestSplitMergedLine(t *testing.T) {
	r := newTestRepairer()

	t.Run("three rows", func(t *testing.T) {
		got := r.SplitMergedLine("01.03.2024,A-1,One,10,1,02.03.2024,A-2,Two,20,2,03.03.2024,A-3,Three,30,3")

		assert.Equal(t, []string{
			"01.03.2024,A-1,One,10,1",
			"02.03.2024,A-2,Two,20,2",
			"03.03.2024,A-3,Three,30,3",
		}, got)
	})

	t.Run("single row", func(t *testing.T) {
		line := "01.03.2024,A-1,One,10,1"
		assert.Equal(t, []string{line}, r.SplitMergedLine(line))
	})

	t.Run("date embedded in a number", func(t *testing.T) {
		line := "01.03.2024,A-1,One,101.02.2024,1"
		assert.Equal(t, []string{line}, r.SplitMergedLine(line))
	})
}

func TestRepairQuotes(t *testing.T) {
	r := newTestRepairer()

	tests := []struct {
		name string
		line string
		want string
	}{
		{"no quotes", "01.03.2024,A-1,One,10,1", "01.03.2024,A-1,One,10,1"},
		{"well-formed quoted", `01.03.2024,A-1,"One, two",10,1`, `01.03.2024,A-1,"One, two",10,1`},
		{"escaped quotes", `01.03.2024,A-1,"Say ""hi""",10,1`, `01.03.2024,A-1,"Say ""hi""",10,1`},
		{"unquoted with quote", `01.03.2024,A-1,Say "hi",10,1`, `01.03.2024,A-1,"Say ""hi""",10,1`},
		{"unescaped inner quotes", `01.03.2024,A-1,"Say "hi" now",10,1`, `01.03.2024,A-1,"Say ""hi"" now",10,1`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.RepairQuotes(tt.line)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, r.RepairQuotes(got), "repair must be idempotent")
		})
	}
}

func TestStripNameArtifacts(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"clean", "Куртка мужская", "Куртка мужская"},
		{"line breaks", "Куртка\nмужская\r\n зимняя", "Куртка мужская зимняя"},
		{"date tail", "Куртка 02.03.2024,WB-2,Шапка,700", "Куртка"},
		{"long number tail", "Шапка,123456789,1", "Шапка"},
		{"number run", "Шапка, 100, 2", "Шапка"},
		{"single number kept", "Чехол iPhone 15", "Чехол iPhone 15"},
		{"trailing punctuation", `Шапка",`, "Шапка"},
		{"balanced quotes kept", `Куртка "Зима"`, `Куртка "Зима"`},
		{"only artifacts", ", 100, 200", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripNameArtifacts(tt.input))
		})
	}
}
