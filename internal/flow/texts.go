package flow

import (
	"fmt"
	"strings"

	"github.com/m3rciful/savdobot/core/telegram/format"
	"github.com/m3rciful/savdobot/core/telegram/keyboard"
	"github.com/m3rciful/savdobot/internal/catalog"
	"github.com/m3rciful/savdobot/internal/command"
	"github.com/m3rciful/savdobot/internal/ledger"
)

const (
	textGreeting       = "Assalomu alaykum 😊\n\n"
	textAskProductID   = "Buyurtma berish uchun tovar ID sini kiriting.\nMisol: *MF1*"
	textUnknownProduct = "❌ Bunday tovar yo‘q. Qayta urinib ko‘ring:"
	textDigitsOnly     = "Faqat son kiriting:"
	textProofReceived  = "✅ Chek qabul qilindi. Tekshirilmoqda..."
	textRejected       = "❌ Buyurtma rad etildi."
	textMainMenu       = "🏠 Bosh menyu"
	textNoOrders       = "Sizda hali buyurtmalar yo‘q."
	textTryAgain       = "⚠️ Xatolik yuz berdi. Keyinroq qayta urinib ko‘ring."
	textForbidden      = "Ruxsat yo‘q"
	textStale          = "Bu tugma eskirgan"
	textOrderNotFound  = "Buyurtma topilmadi"
	textOrderFinal     = "Buyurtma allaqachon ko‘rib chiqilgan"
	textProductMissing = "Tovar topilmadi"
	textConfirmedAck   = "✅ Tasdiqlandi"
	textRejectedAck    = "❌ Rad etildi"

	textAddAskID      = "Yangi tovar ID sini kiriting (masalan: MF5):"
	textAddBadID      = "❌ ID faqat A-Z, 0-9 va - belgilaridan iborat bo‘lishi kerak. Qayta kiriting:"
	textAddDuplicate  = "❌ Bu ID allaqachon mavjud. Boshqa ID kiriting:"
	textAddAskName    = "Tovar nomini kiriting:"
	textAddEmptyName  = "Nom bo‘sh bo‘lmasligi kerak:"
	textAddAskPrice   = "Narxini kiriting (UZS):"
	textAddAskMax     = "Maksimal miqdorni kiriting:"
	textAddAskPost    = "Kanal post ID sini kiriting:"
	textDeleteAsk     = "O‘chiriladigan tovarni tanlang yoki ID sini kiriting:"
	textEditPickField = "Qaysi maydonni o‘zgartirasiz?"
	textPickButton    = "Tugmalardan birini tanlang."
	textAdded         = "✅ Tovar qo‘shildi:\n\n"
	textUpdated       = "✅ Yangilandi:\n\n"
	textDeletedFmt    = "🗑 *%s* o‘chirildi."

	suffixConfirmed = "\n\n✅ TASDIQLANDI"
	suffixRejected  = "\n\n❌ RAD ETILDI"

	textHelp = "ℹ️ *Yordam*\n\n" +
		"1. «Yangi buyurtma» tugmasini bosing yoki /neworder yuboring.\n" +
		"2. Tovar ID sini kiriting (masalan: MF1).\n" +
		"3. Miqdorni kiriting.\n" +
		"4. To‘lovni amalga oshirib, chek rasmini yuboring.\n\n" +
		"Buyurtma holati: /status\nBekor qilish: /cancel"
)

var fieldPrompts = map[command.Field]string{
	command.FieldName:  "Yangi nomni kiriting:",
	command.FieldPrice: "Yangi narxni kiriting (UZS):",
	command.FieldMax:   "Yangi maksimal miqdorni kiriting:",
	command.FieldPost:  "Yangi post ID sini kiriting:",
}

var fieldLabels = map[command.Field]string{
	command.FieldName:  "Nomi",
	command.FieldPrice: "Narxi",
	command.FieldMax:   "Maksimal",
	command.FieldPost:  "Post ID",
}

var statusLabels = map[ledger.Status]string{
	ledger.StatusPending:   "⏳ Kutilmoqda",
	ledger.StatusConfirmed: "✅ Tasdiqlangan",
	ledger.StatusRejected:  "❌ Rad etilgan",
}

func btn(text string, c command.Command) Button {
	return Button{Text: text, Data: c.Encode()}
}

func backKeyboard() Keyboard {
	return Keyboard{{btn("⬅️ Orqaga", command.Command{Kind: command.Back})}}
}

func (e *Engine) menuKeyboard(userID int64) Keyboard {
	kb := Keyboard{
		{btn("🛒 Yangi buyurtma", command.Command{Kind: command.NewOrder})},
		{
			btn("📋 Buyurtmalarim", command.Command{Kind: command.MyStatus}),
			btn("ℹ️ Yordam", command.Command{Kind: command.Help}),
		},
	}
	if e.IsAdmin(userID) {
		kb = append(kb, []Button{btn("⚙️ Admin panel", command.Command{Kind: command.AdminBack})})
	}
	return kb
}

func (e *Engine) price(v int64) string {
	return format.Price(v, e.currency)
}

func (e *Engine) productFallback(p catalog.Product) string {
	return fmt.Sprintf("*%s*\nNarxi: %s", format.MD(p.Name), e.price(p.Price))
}

func askQuantity(p catalog.Product) string {
	return fmt.Sprintf("Nechta buyurtma qilasiz?\nMaksimal: *%d*", p.MaxQuantity)
}

func outOfRange(p catalog.Product) string {
	return fmt.Sprintf("1–%d oralig‘ida kiriting:", p.MaxQuantity)
}

func (e *Engine) paymentPrompt(total int64) string {
	return fmt.Sprintf("💳 To‘lov qiling:\n`%s`\n\nJami: *%s*\n\nChekni rasm qilib yuboring.", e.card, e.price(total))
}

// adminCaption is sent without Markdown so the caption Telegram echoes back
// can be extended verbatim on confirm or reject.
func (e *Engine) adminCaption(fullName string, o ledger.Order) string {
	return fmt.Sprintf("🆕 BUYURTMA\n\n👤 %s\n🆔 %s\n📦 %d dona\n💰 %s\n\n📸 Chek ilova qilindi",
		fullName, o.ProductID, o.Quantity, e.price(o.Total))
}

func (e *Engine) orderSummary(o ledger.Order) string {
	return fmt.Sprintf("🆔 %s\n📦 %d dona\n💰 %s", o.ProductID, o.Quantity, e.price(o.Total))
}

func (e *Engine) confirmedText(o ledger.Order) string {
	return fmt.Sprintf("🎉 Buyurtma tasdiqlandi!\n%s — %d dona\nJami: %s", format.MD(o.ProductName), o.Quantity, e.price(o.Total))
}

func decisionKeyboard(o ledger.Order) Keyboard {
	return Keyboard{{
		btn("✅ Tasdiqlash", command.Command{Kind: command.Confirm, UserID: o.UserID, OrderIndex: o.Index}),
		btn("❌ Rad etish", command.Command{Kind: command.Reject, UserID: o.UserID, OrderIndex: o.Index}),
	}}
}

func (e *Engine) statusText(orders []ledger.Order) string {
	if len(orders) == 0 {
		return textNoOrders
	}
	var b strings.Builder
	b.WriteString("📋 *Buyurtmalaringiz:*\n")
	for i, o := range orders {
		fmt.Fprintf(&b, "\n%d. %s × %d — %s — %s", i+1, format.MD(o.ProductName), o.Quantity, e.price(o.Total), statusLabels[o.Status])
	}
	return b.String()
}

func (e *Engine) productCard(p catalog.Product) string {
	return fmt.Sprintf("*%s* — %s\nNarxi: %s\nMaksimal: %d\nPost: %d", p.ID, format.MD(p.Name), e.price(p.Price), p.MaxQuantity, p.PostID)
}

func adminPanelText(products []catalog.Product) string {
	if len(products) == 0 {
		return "⚙️ *Admin panel*\n\nKatalog bo‘sh."
	}
	return fmt.Sprintf("⚙️ *Admin panel*\n\nTovarlar: %d\nTahrirlash uchun tovarni tanlang.", len(products))
}

func adminPanelKeyboard(products []catalog.Product) Keyboard {
	buttons := make([]Button, 0, len(products))
	for _, p := range products {
		buttons = append(buttons, btn("✏️ "+p.ID, command.Command{Kind: command.EditProduct, ProductID: p.ID}))
	}
	kb := Keyboard(keyboard.NPerRow(buttons, 3))
	kb = append(kb,
		[]Button{
			btn("➕ Tovar qo‘shish", command.Command{Kind: command.AddProduct}),
			btn("🗑 Tovar o‘chirish", command.Command{Kind: command.DeleteProduct}),
		},
		[]Button{btn("⬅️ Orqaga", command.Command{Kind: command.Back})},
	)
	return kb
}

func deleteKeyboard(products []catalog.Product) Keyboard {
	buttons := make([]Button, 0, len(products))
	for _, p := range products {
		buttons = append(buttons, btn("🗑 "+p.ID, command.Command{Kind: command.DeleteProductID, ProductID: p.ID}))
	}
	kb := Keyboard(keyboard.NPerRow(buttons, 3))
	return append(kb, []Button{btn("⬅️ Orqaga", command.Command{Kind: command.AdminBack})})
}

func fieldKeyboard() Keyboard {
	buttons := make([]Button, 0, len(command.Fields))
	for _, f := range command.Fields {
		buttons = append(buttons, btn(fieldLabels[f], command.Command{Kind: command.EditField, Field: f}))
	}
	kb := Keyboard(keyboard.NPerRow(buttons, 2))
	return append(kb, []Button{btn("⬅️ Orqaga", command.Command{Kind: command.AdminBack})})
}
