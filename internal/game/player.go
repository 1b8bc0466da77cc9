package game

// PlayerState is the mutable per-player part of a session.
type PlayerState struct {
	PlayerID string `json:"player_id"`
	Hand     []Card `json:"hand"`
	// Deck is the draw pile; index 0 is the top.
	Deck  []Card `json:"deck"`
	AP    int    `json:"ap"`
	MaxAP int    `json:"max_ap"`
	Board Board  `json:"board"`

	MulliganResolved bool `json:"mulligan_resolved"`
	Mulliganed       bool `json:"mulliganed"`
	DrewThisTurn     bool `json:"drew_this_turn"`
	ExtraDrawUsed    bool `json:"extra_draw_used"`
	TurnsTaken       int  `json:"turns_taken"`
}

func newPlayerState(deck []Card) *PlayerState {
	return &PlayerState{
		Hand:  make([]Card, 0),
		Deck:  cloneCards(deck),
		Board: newBoard(),
	}
}

// TotalCards counts every card the player owns across hand, deck and board.
func (p *PlayerState) TotalCards() int {
	return len(p.Hand) + len(p.Deck) + p.Board.Count()
}

// drawTop moves the top card of the deck to the hand.
func (p *PlayerState) drawTop() (Card, bool) {
	if len(p.Deck) == 0 {
		return Card{}, false
	}
	card := p.Deck[0]
	p.Deck = p.Deck[1:]
	p.Hand = append(p.Hand, card)
	return card, true
}

// drawN draws up to n cards and returns how many were drawn.
func (p *PlayerState) drawN(n int) int {
	drawn := 0
	for i := 0; i < n; i++ {
		if _, ok := p.drawTop(); !ok {
			break
		}
		drawn++
	}
	return drawn
}

// returnHandToDeck puts the whole hand on the bottom of the deck.
func (p *PlayerState) returnHandToDeck() {
	p.Deck = append(p.Deck, p.Hand...)
	p.Hand = make([]Card, 0)
}

// takeFromHand removes and returns the card at index.
func (p *PlayerState) takeFromHand(index int) (Card, bool) {
	if index < 0 || index >= len(p.Hand) {
		return Card{}, false
	}
	card := p.Hand[index]
	p.Hand = append(p.Hand[:index:index], p.Hand[index+1:]...)
	return card, true
}

// takeFromZone removes and returns the card at index in zone.
func (p *PlayerState) takeFromZone(z Zone, index int) (Card, bool) {
	cards := p.Board.Zone(z)
	if cards == nil || index < 0 || index >= len(*cards) {
		return Card{}, false
	}
	card := (*cards)[index]
	*cards = append((*cards)[:index:index], (*cards)[index+1:]...)
	return card, true
}

// putInZone appends card to zone.
func (p *PlayerState) putInZone(z Zone, card Card) {
	cards := p.Board.Zone(z)
	*cards = append(*cards, card)
}

// placeLife moves n cards from the top of the deck to the life area.
func (p *PlayerState) placeLife(n int) int {
	placed := 0
	for i := 0; i < n && len(p.Deck) > 0; i++ {
		card := p.Deck[0]
		p.Deck = p.Deck[1:]
		p.putInZone(ZoneLifeArea, card)
		placed++
	}
	return placed
}

// untapAll clears the rested flag on every card in play.
func (p *PlayerState) untapAll() int {
	untapped := 0
	for _, z := range []Zone{ZoneFrontLine, ZoneEnergyLine} {
		cards := *p.Board.Zone(z)
		for i := range cards {
			if cards[i].Rested {
				cards[i].Rested = false
				untapped++
			}
		}
	}
	return untapped
}

func (p *PlayerState) clone() *PlayerState {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Hand = cloneCards(p.Hand)
	cp.Deck = cloneCards(p.Deck)
	cp.Board = p.Board.clone()
	return &cp
}
