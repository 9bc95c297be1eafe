package services

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsumeAck(t *testing.T) {
	d := NewDisputeMemory()
	tag := Tag{C: 1, Dealer: 1, MWDealer: 1, Moderator: 2}
	pt := AckPoint{Row: 2, Acker: 3}

	assert.Equal(t, ConsumeUnknown, d.ConsumeAck(tag, pt, big.NewInt(5)))

	d.InitAck(tag)
	assert.Equal(t, ConsumeUnknown, d.ConsumeAck(tag, pt, big.NewInt(5)))

	d.RecordAckPoints(tag, map[AckPoint]*big.Int{pt: big.NewInt(5)})
	assert.Equal(t, ConsumeMismatch, d.ConsumeAck(tag, pt, big.NewInt(6)))
	assert.Equal(t, 1, d.AckLen(tag), "mismatch must not consume")

	assert.Equal(t, ConsumeMatch, d.ConsumeAck(tag, pt, big.NewInt(5)))
	assert.False(t, d.HasAck(tag), "empty ACK map must drop the tag key")
	assert.Equal(t, 0, d.AckTagCount())
}

func TestConsumeDeal(t *testing.T) {
	d := NewDisputeMemory()
	tag := Tag{C: 1, Dealer: 1, MWDealer: 2, Moderator: 2}

	assert.Equal(t, ConsumeUnknown, d.ConsumeDeal(tag, 3, big.NewInt(7)))

	d.RecordDealPoint(tag, 3, big.NewInt(7))
	assert.True(t, d.HasDealEntry(tag, 3))
	assert.Equal(t, ConsumeMismatch, d.ConsumeDeal(tag, 3, big.NewInt(8)))
	assert.Equal(t, ConsumeMatch, d.ConsumeDeal(tag, 3, big.NewInt(7)))
	assert.False(t, d.HasDeal(tag), "empty DEAL map must drop the tag key")
}

func TestLiarsOnlyGrow(t *testing.T) {
	d := NewDisputeMemory()
	assert.Empty(t, d.Liars())

	d.AddLiar(3)
	d.AddLiar(1)
	d.AddLiar(3)
	assert.Equal(t, []int{1, 3}, d.Liars())
	assert.True(t, d.IsLiar(3))
	assert.False(t, d.IsLiar(2))
}

func TestOwingTags(t *testing.T) {
	d := NewDisputeMemory()
	ackTag := Tag{C: 1, Dealer: 1, MWDealer: 1, Moderator: 1}
	dealTag := Tag{C: 3, Dealer: 1, MWDealer: 2, Moderator: 1}

	d.RecordAckPoints(ackTag, map[AckPoint]*big.Int{{Row: 1, Acker: 2}: big.NewInt(9)})
	d.RecordDealPoint(dealTag, 2, big.NewInt(4))
	d.RecordDealPoint(dealTag, 3, big.NewInt(5))

	owing := d.OwingTags(2)
	assert.ElementsMatch(t, []Tag{ackTag, dealTag}, owing)

	// ACK evidence names the acker, not the row.
	assert.Empty(t, d.OwingTags(1))
	assert.Equal(t, []Tag{dealTag}, d.OwingTags(3))
}
