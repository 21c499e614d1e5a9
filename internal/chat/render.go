// Package chat, ad rendering.
//
// This file implements the single "render one ad as a message payload"
// capability shared by the submission preview, the moderator review request,
// and the public-channel publication. All three differ only in the trailing
// prompt and keyboard, never in the card itself.
package chat

import (
	"html"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tbourn/go-board-bot/internal/domain"
)

// rub formats prices with Russian digit grouping ("12 500").
var rub = message.NewPrinter(language.Russian)

// FormatPrice renders an amount of rubles with digit grouping.
func FormatPrice(price int64) string {
	return rub.Sprintf("%d", price)
}

// AdCard is the renderable content of one listing, independent of whether it
// originates from an in-progress draft or a persisted ad.
type AdCard struct {
	Title       string
	Description string
	Price       int64
	Category    string
	SellerLogin string
	Photos      []string
}

// CardFromAd builds an AdCard from a persisted ad. The Category and Owner
// associations must be preloaded.
func CardFromAd(ad *domain.Ad) AdCard {
	return AdCard{
		Title:       ad.Title,
		Description: ad.Description,
		Price:       ad.Price,
		Category:    ad.Category.Title,
		SellerLogin: ad.Owner.Login,
		Photos:      ad.PhotoIDs(),
	}
}

// Caption renders the card as HTML-formatted message text. The layout
// mirrors the channel post format: title, description, price, category
// hashtag, and the seller's handle when known. User-entered fields are
// escaped; a "<" in a title must not break the parse mode.
func (c AdCard) Caption() string {
	var b strings.Builder
	b.WriteString("<b>" + html.EscapeString(c.Title) + "</b>\n\n")
	b.WriteString("<b>Описание:</b>\n" + html.EscapeString(c.Description) + "\n\n")
	b.WriteString("<b>Цена:</b> " + FormatPrice(c.Price) + " руб.\n\n")
	b.WriteString("<b>Категория:</b> #" + c.Category)
	if c.SellerLogin != "" {
		b.WriteString("\n<b>Продавец:</b> @" + c.SellerLogin)
	}
	return b.String()
}

// Render produces the deliverable payload for the card. The prompt, when
// non-empty, is appended as a followup message so it can carry the keyboard
// even when the card is an album.
func (c AdCard) Render(prompt string, kb *Keyboard) Payload {
	p := Payload{
		Text:     c.Caption(),
		Photos:   c.Photos,
		Keyboard: kb,
	}
	if prompt != "" && len(c.Photos) > 1 {
		p.Followup = prompt
	} else if prompt != "" && len(c.Photos) <= 1 {
		p.Text = p.Text + "\n\n" + prompt
	}
	return p
}
