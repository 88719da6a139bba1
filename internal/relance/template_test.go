package relance

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/recouvra/recouvra/internal/clients"
	"github.com/recouvra/recouvra/internal/invoices"
)

func TestRenderSubstitutesKnownVariables(t *testing.T) {
	vars := map[string]string{"client_name": "Garage Lemoine", "amount": "2 000,00 €"}

	out := Render("Bonjour {{client_name}}, il reste {{ amount }} à régler.", vars)
	require.Equal(t, "Bonjour Garage Lemoine, il reste 2 000,00 € à régler.", out)
}

func TestRenderKeepsUnknownTokensLiteral(t *testing.T) {
	out := Render("Référence {{dossier_id}} pour {{client_name}}.", map[string]string{"client_name": "X"})
	require.Equal(t, "Référence {{dossier_id}} pour X.", out)
}

func TestFormatAmountFrenchLocale(t *testing.T) {
	out := FormatAmount(1234.5)
	require.True(t, strings.HasSuffix(out, "€"), out)
	require.Contains(t, out, "234,50", "decimal comma with two forced decimals")
	require.NotContains(t, out, "1234", "thousands are grouped")
}

func TestTemplateContext(t *testing.T) {
	client := clients.Client{ID: "c1", Name: "Transports Roche", Company: "Transports Roche SA"}
	invs := []invoices.Invoice{
		unpaidInvoice("c1", 10, 300),
		{
			ClientID: "c1",
			Number:   "FAC-2002",
			Amount:   500,
			DueDate:  asOf.AddDate(0, 0, -40),
			Status:   invoices.StatusOverdue,
		},
	}

	vars := TemplateContext(client, invs, asOf)
	require.Equal(t, "Transports Roche", vars["client_name"])
	require.Equal(t, "FAC-2002", vars["invoice_number"], "the most overdue invoice drives the letter")
	require.Equal(t, "40", vars["days_overdue"])
	require.Equal(t, asOf.AddDate(0, 0, -40).Format("02/01/2006"), vars["due_date"])
	require.Contains(t, vars["total_amount"], "800,00")
}

func TestTemplateContextNoUnpaidInvoices(t *testing.T) {
	vars := TemplateContext(clients.Client{Name: "X"}, nil, asOf)
	require.NotContains(t, vars, "invoice_number")
	require.Equal(t, "X", vars["client_name"])
}
