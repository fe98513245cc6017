package web

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackielii/heritage/internal/content"
	"github.com/jackielii/heritage/internal/qr"
	"github.com/jackielii/heritage/internal/viewmodel"
)

func TestQRPanel_UsesConfiguredWidth(t *testing.T) {
	var sb strings.Builder
	d := pageData{QR: qr.Ready, QRText: "https://heritage.example/", QRWidth: 320}
	require.NoError(t, qrPanel(d).Render(context.Background(), &sb))
	assert.Contains(t, sb.String(), `width="320" height="320"`)
}

func TestLayout_NamesPageLoad(t *testing.T) {
	cat, err := content.Default()
	require.NoError(t, err)
	cat.Footer = "Казань & Co"
	vm := viewmodel.New()
	vm.SelectSection(content.Tales)

	var sb strings.Builder
	d := pageData{Catalog: cat, PageLoad: "0b7f2c1e-5d1a-4c3b-9a8e-2f6d7c8b9a01", VM: vm, QR: qr.Pending}
	require.NoError(t, layout(d).Render(context.Background(), &sb))

	html := sb.String()
	assert.True(t, strings.HasPrefix(html, "<!doctype html>"))
	assert.Contains(t, html, `hx-vals="{&#34;page_load&#34;:&#34;0b7f2c1e-5d1a-4c3b-9a8e-2f6d7c8b9a01&#34;}"`)
	assert.Contains(t, html, `<section class="panel" role="tabpanel" id="panel-tales">`)
	assert.Contains(t, html, "<footer>Казань &amp; Co</footer>")
}
