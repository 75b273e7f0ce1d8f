package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutrimind/reference"
	"nutrimind/tools/storage"
)

const foodsCSV = `fdc_id,data_type,description,food_category_id,publication_date
1123,sr_legacy_food,"Egg, whole, boiled",100,2019-04-01
1145,sr_legacy_food,"Butter, salted",101,2019-04-01
2047,survey_fndds_food,"Egg omelet, fast food",100,2019-04-01
20045,foundation_food,"Rice, white, cooked",102,2019-04-01
30000,sr_legacy_food,"Mystery food with no energy",103,2019-04-01
`

const nutrientsCSV = `id,fdc_id,nutrient_id,amount,data_points
1,1123,1008,155,10
2,1123,1003,12.56,10
3,1123,1005,1.12,10
4,1123,1004,10.61,10
5,1145,1008,717,10
6,1145,1004,81.11,10
7,20045,1008,130,10
8,20045,1003,2.69,10
9,20045,1005,28.17,10
10,20045,1004,0.28,10
11,2047,1008,154,10
12,30000,1003,5.0,10
`

const portionsCSV = `id,fdc_id,seq_num,amount,measure_unit_id,portion_description,modifier,gram_weight,data_points
1,1123,1,1.0,9999,,large egg,50,5
2,20045,1,1.0,9999,,cup,186,5
3,20045,2,0.5,9999,,cup,93,5
`

func TestParseUSDA(t *testing.T) {
	records, err := ParseUSDA(
		strings.NewReader(foodsCSV),
		strings.NewReader(nutrientsCSV),
		strings.NewReader(portionsCSV),
	)
	require.NoError(t, err)

	// The survey food is filtered by data type; the energy-less food is dropped.
	require.Len(t, records, 3)

	egg := records[0]
	assert.Equal(t, "1123", egg.ID)
	assert.Equal(t, "Egg, whole, boiled", egg.Description)
	assert.InDelta(t, 155, egg.Kcal, 1e-9)
	assert.InDelta(t, 12.56, egg.Protein, 1e-9)
	require.Len(t, egg.Portions, 1)
	assert.Equal(t, "1 large egg", egg.Portions[0].Label)
	assert.InDelta(t, 50, egg.Portions[0].Grams, 1e-9)

	butter := records[1]
	assert.InDelta(t, 717, butter.Kcal, 1e-9)
	assert.Zero(t, butter.Protein) // missing macro defaults to zero
	assert.Empty(t, butter.Portions)

	rice := records[2]
	assert.Equal(t, "foundation_food", rice.Table)
	require.Len(t, rice.Portions, 2)
	assert.Equal(t, "1 cup", rice.Portions[0].Label)
	assert.Equal(t, "0.5 cup", rice.Portions[1].Label)
}

func TestParseUSDAMissingColumn(t *testing.T) {
	_, err := ParseUSDA(
		strings.NewReader("fdc_id,description\n1,egg\n"),
		strings.NewReader(nutrientsCSV),
		nil,
	)
	assert.Error(t, err)
}

func TestRegionalRecords(t *testing.T) {
	records := RegionalRecords()
	require.NotEmpty(t, records)

	seen := map[string]bool{}
	for _, rec := range records {
		assert.Equal(t, "regional_supplement", rec.Table)
		assert.Positive(t, rec.Kcal, "record %s", rec.Description)
		assert.False(t, seen[rec.ID], "duplicate id %s", rec.ID)
		seen[rec.ID] = true
	}
}

type fakeEmbedder struct {
	dim     int
	batches int
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.batches++
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, f.dim)
		v[i%f.dim] = 1
		out[i] = v
	}
	return out, nil
}

func TestPipelineRoundTrip(t *testing.T) {
	records := []reference.Record{
		{ID: "1", Description: "Egg, whole, boiled", Kcal: 155},
		{ID: "2", Description: "Butter, salted", Kcal: 717},
		{ID: "3", Description: "Rice, white, cooked", Kcal: 130},
	}

	matrix := storage.NewTestArtifactState(nil)
	metadata := storage.NewTestArtifactState(nil)
	embedder := &fakeEmbedder{dim: 4}

	pipeline := NewPipeline(embedder, matrix, metadata, 2)
	require.NoError(t, pipeline.Run(context.Background(), records))
	assert.Equal(t, 2, embedder.batches)

	// The artifacts load back into a working store.
	store := reference.NewStore(matrix, metadata)
	require.NoError(t, store.Load(context.Background()))
	assert.Equal(t, 3, store.Size())
	assert.Equal(t, 4, store.Dim())

	query := []float32{0, 1, 0, 0} // matches record index 1
	idx, score := store.Search(query)
	require.Equal(t, 1, idx)
	assert.InDelta(t, 1.0, score, 1e-6)
	assert.Equal(t, "Butter, salted", store.RecordAt(idx).Description)
}

func TestPipelineRejectsEmpty(t *testing.T) {
	pipeline := NewPipeline(&fakeEmbedder{dim: 4}, storage.NewTestArtifactState(nil), storage.NewTestArtifactState(nil), 0)
	assert.Error(t, pipeline.Run(context.Background(), nil))
}
