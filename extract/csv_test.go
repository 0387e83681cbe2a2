package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/lectern/pagetext"
)

func TestCSV_PaginatesRows(t *testing.T) {
	p, err := NewCSV(WithRowsPerPage(2))
	require.NoError(t, err)
	content := "name, city\nAda,London\nAlan,Wilmslow\n,\nGrace,Arlington\n"

	doc, err := p.Extract(context.Background(), Input{Content: []byte(content)})
	require.NoError(t, err)

	assert.Equal(t, pagetext.TypeCSV, doc.Type)
	assert.Equal(t, "name, city", doc.Header["Columns"])
	assert.Equal(t, "3", doc.Header["Rows"])
	assert.Equal(t, []string{
		"Row 1: name: Ada; city: London\nRow 2: name: Alan; city: Wilmslow",
		"Row 3: name: Grace; city: Arlington",
	}, doc.Pages)
}

func TestCSV_ExtraFieldsAndBlankColumns(t *testing.T) {
	p, err := NewCSV()
	require.NoError(t, err)

	doc, err := p.Extract(context.Background(), Input{Content: []byte("a,\n1,2,3\n")})
	require.NoError(t, err)

	assert.Equal(t, []string{"Row 1: a: 1; column 2: 2; column 3: 3"}, doc.Pages)
}

func TestCSV_Empty(t *testing.T) {
	p, err := NewCSV()
	require.NoError(t, err)

	_, err = p.Extract(context.Background(), Input{Content: nil})
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = p.Extract(context.Background(), Input{Content: []byte("only,header\n")})
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestWithRowsPerPage_Invalid(t *testing.T) {
	_, err := NewCSV(WithRowsPerPage(0))
	assert.Error(t, err)
}
