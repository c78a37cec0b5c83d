package crawler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductRecordMarshalJSON(t *testing.T) {
	data, err := json.Marshal(ProductRecord{Title: "Lamp"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Lamp","adInfo":{},"generalInfo":{},"features":{}}`, string(data))

	rec := NewProductRecord()
	rec.Price = "$5"
	rec.AdInfo[KeyItemID] = "42"
	data, err = json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":"$5","adInfo":{"Item ID":"42"},"generalInfo":{},"features":{}}`, string(data))
}

func TestProductRecordTarget(t *testing.T) {
	var rec ProductRecord
	rec.Target(TargetFeatures)["Color"] = "red"
	rec.Target(TargetGeneralInfo)["Views"] = "3"
	rec.Target("")["Seller"] = "bob"

	assert.Equal(t, "red", rec.Features["Color"])
	assert.Equal(t, "3", rec.GeneralInfo["Views"])
	assert.Equal(t, "bob", rec.AdInfo["Seller"])
}
