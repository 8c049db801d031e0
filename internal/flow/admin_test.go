package flow

import (
	"context"
	"testing"

	"github.com/m3rciful/savdobot/internal/catalog"
	"github.com/m3rciful/savdobot/internal/command"
	"github.com/m3rciful/savdobot/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminAddScenarioMF8(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.engine.HandleCallback(ctx, h.callback(adminID, "add_product", "")))
	assert.Equal(t, PhaseAddID, h.phase(adminID))

	steps := []struct {
		in   string
		next Phase
	}{
		{"mf8", PhaseAddName},
		{"Test", PhaseAddPrice},
		{"1000", PhaseAddMax},
		{"5", PhaseAddPost},
		{"999", PhaseIdle},
	}
	for _, st := range steps {
		require.NoError(t, h.engine.HandleText(ctx, text(adminID, st.in)))
		assert.Equal(t, st.next, h.phase(adminID), st.in)
	}

	p, err := h.catalog.Get(ctx, "MF8")
	require.NoError(t, err)
	assert.Equal(t, catalog.Product{ID: "MF8", Name: "Test", Price: 1000, MaxQuantity: 5, PostID: 999}, p)
	assert.Contains(t, h.events.types, events.ProductAdded)

	h.order(buyerID, "MF8", "5", "file")
	fwd := h.notify.kinds("forward")
	assert.Equal(t, 999, fwd[len(fwd)-1].PostID)
	orders, err := h.ledger.List(ctx, buyerID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "Test", orders[0].ProductName)
	assert.Equal(t, int64(1000), orders[0].UnitPrice)
	assert.Equal(t, int64(5000), orders[0].Total)

	require.NoError(t, h.engine.NewOrder(ctx, user(buyerID)))
	require.NoError(t, h.engine.HandleText(ctx, text(buyerID, "MF8")))
	require.NoError(t, h.engine.HandleText(ctx, text(buyerID, "6")))
	assert.Equal(t, PhaseQuantity, h.phase(buyerID))
}

func TestAdminAddRejectsBadInput(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.engine.HandleCallback(ctx, h.callback(adminID, "add_product", "")))

	for in, want := range map[string]string{
		"MF1":  textAddDuplicate,
		"mf_8": textAddBadID,
		"":     textAddBadID,
	} {
		require.NoError(t, h.engine.HandleText(ctx, text(adminID, in)))
		assert.Equal(t, PhaseAddID, h.phase(adminID), in)
		assert.Equal(t, want, h.notify.last().Msg.Text, in)
	}

	require.NoError(t, h.engine.HandleText(ctx, text(adminID, "MF9")))
	require.NoError(t, h.engine.HandleText(ctx, text(adminID, "   ")))
	assert.Equal(t, PhaseAddName, h.phase(adminID))
	require.NoError(t, h.engine.HandleText(ctx, text(adminID, "Olma")))
	require.NoError(t, h.engine.HandleText(ctx, text(adminID, "12k")))
	assert.Equal(t, PhaseAddPrice, h.phase(adminID))
	assert.Equal(t, textDigitsOnly, h.notify.last().Msg.Text)
	assert.Equal(t, "MF9", h.session(adminID).Data.Product.ID)
}

func TestAdminAddLosesRaceWithDuplicate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.engine.HandleCallback(ctx, h.callback(adminID, "add_product", "")))
	for _, in := range []string{"MF9", "Nok", "700", "3"} {
		require.NoError(t, h.engine.HandleText(ctx, text(adminID, in)))
	}
	require.NoError(t, h.catalog.Add(ctx, catalog.Product{ID: "MF9", Name: "Other", Price: 1, MaxQuantity: 1}))

	require.NoError(t, h.engine.HandleText(ctx, text(adminID, "11")))
	assert.Equal(t, PhaseAddID, h.phase(adminID))
	p, err := h.catalog.Get(ctx, "MF9")
	require.NoError(t, err)
	assert.Equal(t, "Other", p.Name)
}

func TestAdminEditFields(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cases := []struct {
		field string
		value string
		check func(catalog.Product) bool
	}{
		{"field_price", "7000", func(p catalog.Product) bool { return p.Price == 7000 }},
		{"field_max", "3", func(p catalog.Product) bool { return p.MaxQuantity == 3 }},
		{"field_post", "1200", func(p catalog.Product) bool { return p.PostID == 1200 }},
		{"field_name", " Olma daraxti ", func(p catalog.Product) bool { return p.Name == "Olma daraxti" }},
	}
	for _, tc := range cases {
		require.NoError(t, h.engine.HandleCallback(ctx, h.callback(adminID, "edit_MF1", "")))
		assert.Equal(t, PhaseEditField, h.phase(adminID))

		require.NoError(t, h.engine.HandleCallback(ctx, h.callback(adminID, tc.field, "")))
		assert.Equal(t, PhaseEditValue, h.phase(adminID))

		require.NoError(t, h.engine.HandleText(ctx, text(adminID, tc.value)))
		assert.Equal(t, PhaseIdle, h.phase(adminID))

		p, err := h.catalog.Get(ctx, "MF1")
		require.NoError(t, err)
		assert.True(t, tc.check(p), tc.field)
	}
	assert.Contains(t, h.events.types, events.ProductUpdated)
}

func TestAdminEditValueRepromptsOnText(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.engine.HandleCallback(ctx, h.callback(adminID, "edit_MF2", "")))

	require.NoError(t, h.engine.HandleText(ctx, text(adminID, "price")))
	assert.Equal(t, PhaseEditField, h.phase(adminID))
	assert.Equal(t, textPickButton, h.notify.last().Msg.Text)

	require.NoError(t, h.engine.HandleCallback(ctx, h.callback(adminID, "field_price", "")))
	require.NoError(t, h.engine.HandleText(ctx, text(adminID, "abc")))
	assert.Equal(t, PhaseEditValue, h.phase(adminID))

	p, err := h.catalog.Get(ctx, "MF2")
	require.NoError(t, err)
	assert.Equal(t, int64(4000), p.Price)
}

func TestAdminEditStaleAndMissing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.engine.HandleCallback(ctx, h.callback(adminID, "field_max", "")))
	assert.Equal(t, answer{ID: "cb-field_max", Text: textStale}, h.notify.answers[0])
	assert.Equal(t, PhaseIdle, h.phase(adminID))

	require.NoError(t, h.engine.HandleCallback(ctx, h.callback(adminID, "edit_NOPE", "")))
	assert.Equal(t, answer{ID: "cb-edit_NOPE", Text: textProductMissing, Alert: true}, h.notify.answers[1])

	require.NoError(t, h.engine.HandleCallback(ctx, h.callback(adminID, "edit_MF3", "")))
	require.NoError(t, h.engine.HandleCallback(ctx, h.callback(adminID, "field_max", "")))
	require.NoError(t, h.catalog.Delete(ctx, "MF3"))
	require.NoError(t, h.engine.HandleText(ctx, text(adminID, "4")))
	assert.Equal(t, PhaseIdle, h.phase(adminID))
	_, err := h.catalog.Get(ctx, "MF3")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestAdminDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.engine.HandleCallback(ctx, h.callback(adminID, "delete_product", "")))
	assert.Equal(t, PhaseDeleteID, h.phase(adminID))
	kb := h.notify.last().Msg.Keyboard
	assert.Equal(t, "del_MF1", kb[0][0].Data)

	require.NoError(t, h.engine.HandleCallback(ctx, h.callback(adminID, "del_MF2", "")))
	_, err := h.catalog.Get(ctx, "MF2")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	assert.Equal(t, PhaseIdle, h.phase(adminID))
	assert.Contains(t, h.events.types, events.ProductDeleted)

	require.NoError(t, h.engine.HandleCallback(ctx, h.callback(adminID, "delete_product", "")))
	require.NoError(t, h.engine.HandleText(ctx, text(adminID, "nope")))
	assert.Equal(t, PhaseDeleteID, h.phase(adminID))
	require.NoError(t, h.engine.HandleText(ctx, text(adminID, " mf3 ")))
	_, err = h.catalog.Get(ctx, "MF3")
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	require.NoError(t, h.engine.HandleCallback(ctx, h.callback(adminID, "del_MF3", "")))
	last := h.notify.answers[len(h.notify.answers)-1]
	assert.Equal(t, textProductMissing, last.Text)
	assert.True(t, last.Alert)
}

func TestDeleteKeepsSnapshotForBuyerInFlight(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.engine.NewOrder(ctx, user(buyerID)))
	require.NoError(t, h.engine.HandleText(ctx, text(buyerID, "MF1")))
	require.NoError(t, h.engine.HandleCallback(ctx, h.callback(adminID, "del_MF1", "")))

	_, err := h.catalog.Get(ctx, "MF1")
	require.ErrorIs(t, err, catalog.ErrNotFound)

	require.NoError(t, h.engine.HandleText(ctx, text(buyerID, "5")))
	assert.Equal(t, int64(30000), h.session(buyerID).Data.Total)
	require.NoError(t, h.engine.HandlePhoto(ctx, photo(buyerID, "file")))

	orders, err := h.ledger.List(ctx, buyerID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "Daraxt", orders[0].ProductName)

	require.NoError(t, h.engine.NewOrder(ctx, user(buyerID)))
	require.NoError(t, h.engine.HandleText(ctx, text(buyerID, "MF1")))
	assert.Equal(t, PhaseProductID, h.phase(buyerID))
}

func TestNonAdminCatalogActionsClearSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, data := range []string{"add_product", "delete_product", "admin_back", "edit_MF1", "del_MF1", "field_price"} {
		require.NoError(t, h.engine.NewOrder(ctx, user(buyerID)))
		require.NoError(t, h.engine.HandleText(ctx, text(buyerID, "MF1")))
		h.notify.reset()

		require.NoError(t, h.engine.HandleCallback(ctx, h.callback(buyerID, data, "")))
		assert.Equal(t, PhaseIdle, h.phase(buyerID), data)
		require.Len(t, h.notify.answers, 1, data)
		assert.Equal(t, answer{ID: "cb-" + data, Text: textForbidden, Alert: true}, h.notify.answers[0])
		assert.Empty(t, h.notify.out, data)
	}
	_, err := h.catalog.Get(ctx, "MF1")
	assert.NoError(t, err)

	require.NoError(t, h.engine.AdminPanel(ctx, user(buyerID)))
	assert.Equal(t, textForbidden, h.notify.last().Msg.Text)
}

func TestAdminPanel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.engine.HandleCallback(ctx, h.callback(adminID, "add_product", "")))

	require.NoError(t, h.engine.AdminPanel(ctx, user(adminID)))
	assert.Equal(t, PhaseIdle, h.phase(adminID))
	msg := h.notify.last().Msg
	assert.Contains(t, msg.Text, "Tovarlar: 4")
	require.Len(t, msg.Keyboard, 4)
	assert.Equal(t, []string{"edit_MF1", "edit_MF2", "edit_MF3"}, buttonData(msg.Keyboard[0]))
	assert.Equal(t, []string{"edit_MF4"}, buttonData(msg.Keyboard[1]))
	assert.Equal(t, []string{"add_product", "delete_product"}, buttonData(msg.Keyboard[2]))
	assert.Equal(t, []string{"back"}, buttonData(msg.Keyboard[3]))

	for _, row := range msg.Keyboard {
		for _, b := range row {
			_, err := command.Parse(b.Data)
			assert.NoError(t, err, b.Data)
		}
	}
}

func buttonData(row []Button) []string {
	out := make([]string, len(row))
	for i, b := range row {
		out[i] = b.Data
	}
	return out
}

func (f *fakeNotifier) sentTo(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []string
	for _, o := range f.out {
		if o.Kind == "send" && o.ChatID == chatID {
			res = append(res, o.Msg.Text)
		}
	}
	return res
}

func TestAdminCatalogConfirmations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.engine.HandleCallback(ctx, h.callback(adminID, "add_product", "")))
	for _, in := range []string{"MF8", "Test", "1000", "5", "999"} {
		require.NoError(t, h.engine.HandleText(ctx, text(adminID, in)))
	}
	added, err := h.catalog.Get(ctx, "MF8")
	require.NoError(t, err)
	assert.Contains(t, h.notify.sentTo(adminID), "✅ Tovar qo‘shildi:\n\n"+h.engine.productCard(added))

	require.NoError(t, h.engine.HandleCallback(ctx, h.callback(adminID, "edit_MF8", "")))
	require.NoError(t, h.engine.HandleCallback(ctx, h.callback(adminID, "field_price", "")))
	require.NoError(t, h.engine.HandleText(ctx, text(adminID, "2000")))
	updated, err := h.catalog.Get(ctx, "MF8")
	require.NoError(t, err)
	assert.Contains(t, h.notify.sentTo(adminID), "✅ Yangilandi:\n\n"+h.engine.productCard(updated))

	require.NoError(t, h.engine.HandleCallback(ctx, h.callback(adminID, "del_MF8", "")))
	assert.Contains(t, h.notify.sentTo(adminID), "🗑 *MF8* o‘chirildi.")
}
