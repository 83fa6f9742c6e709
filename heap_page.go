package coredb

import (
	"bytes"
	"sync"
)

// HeapPage is the on-disk page format of spec section 3/4.1: a bitmap
// header, then a fixed number of fixed-size tuple slots, then zero
// padding to PageSize. Structurally grounded on the teacher's
// heap_page.go (toBuffer/initFromBuffer via bytes.Buffer+encoding/binary,
// the tupleIter closure, insertTuple/deleteTuple contracts), with the
// teacher's two int32 counters replaced by the slot-occupancy bitmap spec
// section 3 requires, and before-image support added.
type HeapPage struct {
	id       PageID
	desc     *TupleDesc
	file     *HeapFile
	numSlots int
	header   []byte // ceil(numSlots/8) bytes; bit i set iff slot i occupied
	tuples   []*Tuple

	dirty    bool
	dirtyTid TransactionID

	beforeImageMu sync.Mutex
	beforeImage   []byte
}

// numSlotsFor computes S = floor((PageSize*8) / (tupleSize*8 + 1)), the
// slot count spec section 3 defines.
func numSlotsFor(desc *TupleDesc) int {
	tupleBits := desc.byteSize() * 8
	return (PageSize * 8) / (tupleBits + 1)
}

func headerBytesFor(numSlots int) int {
	return (numSlots + 7) / 8
}

// NewHeapPage constructs an empty page for the given id/desc/file.
func NewHeapPage(id PageID, desc *TupleDesc, file *HeapFile) *HeapPage {
	numSlots := numSlotsFor(desc)
	p := &HeapPage{
		id:       id,
		desc:     desc,
		file:     file,
		numSlots: numSlots,
		header:   make([]byte, headerBytesFor(numSlots)),
		tuples:   make([]*Tuple, numSlots),
	}
	p.beforeImage = p.pageDataLocked()
	return p
}

// NewHeapPageFromBytes reconstructs a page from its on-disk byte format
// (spec section 8, invariant 1: page round-trip).
func NewHeapPageFromBytes(id PageID, desc *TupleDesc, file *HeapFile, data []byte) (*HeapPage, error) {
	numSlots := numSlotsFor(desc)
	p := &HeapPage{
		id:       id,
		desc:     desc,
		file:     file,
		numSlots: numSlots,
		header:   make([]byte, headerBytesFor(numSlots)),
		tuples:   make([]*Tuple, numSlots),
	}
	buf := bytes.NewBuffer(data)
	copy(p.header, buf.Next(len(p.header)))
	for slot := 0; slot < numSlots; slot++ {
		tupleBuf := bytes.NewBuffer(buf.Next(desc.byteSize()))
		if !p.isSlotUsed(slot) {
			continue
		}
		t, err := readTupleFrom(tupleBuf, desc)
		if err != nil {
			return nil, err
		}
		t.Rid = &RecordID{Page: id, Slot: slot}
		p.tuples[slot] = t
	}
	p.beforeImage = append([]byte(nil), data...)
	return p, nil
}

func (p *HeapPage) isSlotUsed(slot int) bool {
	return p.header[slot/8]&(1<<uint(slot%8)) != 0
}

func (p *HeapPage) setSlotUsed(slot int, used bool) {
	mask := byte(1 << uint(slot%8))
	if used {
		p.header[slot/8] |= mask
	} else {
		p.header[slot/8] &^= mask
	}
}

// NumEmptySlots returns the number of unoccupied slots (spec section 8,
// invariant 2: matches the zero bits in the occupied range).
func (p *HeapPage) NumEmptySlots() int {
	empty := 0
	for slot := 0; slot < p.numSlots; slot++ {
		if !p.isSlotUsed(slot) {
			empty++
		}
	}
	return empty
}

// InsertTuple places t in the lowest-indexed free slot.
func (p *HeapPage) InsertTuple(t *Tuple) error {
	if !t.Desc.equals(p.desc) {
		return NewGoDBError(SchemaMismatchError, "tuple desc does not match page desc")
	}
	for slot := 0; slot < p.numSlots; slot++ {
		if p.isSlotUsed(slot) {
			continue
		}
		stored := &Tuple{Desc: *p.desc, Fields: append([]Field(nil), t.Fields...)}
		rid := &RecordID{Page: p.id, Slot: slot}
		stored.Rid = rid
		p.tuples[slot] = stored
		p.setSlotUsed(slot, true)
		t.Rid = &RecordID{Page: p.id, Slot: slot}
		p.dirty = true
		return nil
	}
	return NewGoDBError(PageFullError, "no empty slot on page")
}

// DeleteTuple clears the slot t.Rid refers to, after verifying t.Rid
// points at this page and the stored tuple matches.
func (p *HeapPage) DeleteTuple(t *Tuple) error {
	if t.Rid == nil || t.Rid.Page != p.id {
		return NewGoDBError(NotOnPageError, "record id does not reference this page")
	}
	slot := t.Rid.Slot
	if slot < 0 || slot >= p.numSlots || !p.isSlotUsed(slot) {
		return NewGoDBError(NotOnPageError, "slot is not occupied")
	}
	stored := p.tuples[slot]
	if stored == nil || !stored.equals(t) {
		return NewGoDBError(NotOnPageError, "stored tuple differs from supplied tuple")
	}
	p.tuples[slot] = nil
	p.setSlotUsed(slot, false)
	t.Rid = nil
	p.dirty = true
	return nil
}

// Iterator returns a function yielding occupied tuples in slot order, then
// (nil, nil) forever after (spec section 4.1).
func (p *HeapPage) Iterator() func() (*Tuple, error) {
	slot := 0
	return func() (*Tuple, error) {
		for slot < p.numSlots {
			t := p.tuples[slot]
			slot++
			if t != nil {
				return t, nil
			}
		}
		return nil, nil
	}
}

// MarkDirty records whether tid has dirtied this page.
func (p *HeapPage) MarkDirty(dirty bool, tid TransactionID) {
	p.dirty = dirty
	if dirty {
		p.dirtyTid = tid
	}
}

// IsDirty returns the dirtying transaction and whether the page is dirty.
func (p *HeapPage) IsDirty() (TransactionID, bool) {
	return p.dirtyTid, p.dirty
}

// PageData serialises the page to its PageSize on-disk byte format.
func (p *HeapPage) PageData() []byte {
	return p.pageDataLocked()
}

func (p *HeapPage) pageDataLocked() []byte {
	buf := new(bytes.Buffer)
	buf.Write(p.header)
	for slot := 0; slot < p.numSlots; slot++ {
		t := p.tuples[slot]
		if t == nil {
			buf.Write(make([]byte, p.desc.byteSize()))
			continue
		}
		start := buf.Len()
		_ = t.writeTo(buf)
		written := buf.Len() - start
		if pad := p.desc.byteSize() - written; pad > 0 {
			buf.Write(make([]byte, pad))
		}
	}
	out := buf.Bytes()
	if len(out) < PageSize {
		padded := make([]byte, PageSize)
		copy(padded, out)
		return padded
	}
	return out[:PageSize]
}

// GetBeforeImage returns the snapshot taken at the last SetBeforeImage
// call (initially the page as constructed/read from disk). Guarded by its
// own mutex, independent of any page-level lock, per spec section 4.1.
func (p *HeapPage) GetBeforeImage() []byte {
	p.beforeImageMu.Lock()
	defer p.beforeImageMu.Unlock()
	out := make([]byte, len(p.beforeImage))
	copy(out, p.beforeImage)
	return out
}

// SetBeforeImage snapshots the page's current byte form as its new
// before-image, called on commit after a successful flush.
func (p *HeapPage) SetBeforeImage() {
	data := p.pageDataLocked()
	p.beforeImageMu.Lock()
	p.beforeImage = data
	p.beforeImageMu.Unlock()
}

func (p *HeapPage) ID() PageID { return p.id }

func (p *HeapPage) getFile() *HeapFile { return p.file }
