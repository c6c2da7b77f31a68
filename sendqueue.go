// wifi-nan
// Copyright (c) 2026 The ProjectBlaze Reborn Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of wifi-nan.
//
// wifi-nan is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// wifi-nan is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with wifi-nan; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package nan

import (
	"sort"
	"time"
)

// queuedSendMessage is one follow-on message in flight through the host or
// firmware queue. arrivalSeq is assigned once at enqueue and never changes,
// so a retried message keeps its FIFO position relative to messages that
// have not been attempted yet.
type queuedSendMessage struct {
	enqueueTime   time.Time
	payload       []byte
	arrivalSeq    int
	clientID      int
	sessionID     int
	peerID        int
	messageID     int
	retryCount    int
	transactionID uint16
}

// hostSendQueue holds messages awaiting a transmit attempt, ordered by
// ascending arrivalSeq.
type hostSendQueue struct {
	entries []*queuedSendMessage
}

// insert places msg at its arrivalSeq position. Retried messages re-enter
// ahead of anything that arrived after them.
func (q *hostSendQueue) insert(msg *queuedSendMessage) {
	i := sort.Search(len(q.entries), func(i int) bool {
		return q.entries[i].arrivalSeq >= msg.arrivalSeq
	})
	q.entries = append(q.entries, nil)
	copy(q.entries[i+1:], q.entries[i:])
	q.entries[i] = msg
}

// popFront removes and returns the smallest-arrivalSeq entry, or nil when
// empty.
func (q *hostSendQueue) popFront() *queuedSendMessage {
	if len(q.entries) == 0 {
		return nil
	}
	msg := q.entries[0]
	q.entries[0] = nil
	q.entries = q.entries[1:]
	return msg
}

func (q *hostSendQueue) len() int { return len(q.entries) }

func (q *hostSendQueue) clear() { q.entries = nil }

// fwSendQueue holds messages accepted by the firmware, keyed by the
// transaction id under which they were queued. Iteration order is insertion
// order, which (given at-most-one-in-flight) is also ascending enqueue
// time.
type fwSendQueue struct {
	entries []*queuedSendMessage
}

// add appends msg; msg.transactionID must already be set.
func (q *fwSendQueue) add(msg *queuedSendMessage) {
	q.entries = append(q.entries, msg)
}

// remove deletes and returns the entry queued under tx, or nil when no
// such entry exists (late notification after a timeout expiry).
func (q *fwSendQueue) remove(tx uint16) *queuedSendMessage {
	for i, msg := range q.entries {
		if msg.transactionID == tx {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return msg
		}
	}
	return nil
}

// first returns the oldest entry without removing it, or nil when empty.
func (q *fwSendQueue) first() *queuedSendMessage {
	if len(q.entries) == 0 {
		return nil
	}
	return q.entries[0]
}

// removeFirst removes and returns the oldest entry, or nil when empty.
func (q *fwSendQueue) removeFirst() *queuedSendMessage {
	if len(q.entries) == 0 {
		return nil
	}
	msg := q.entries[0]
	q.entries[0] = nil
	q.entries = q.entries[1:]
	return msg
}

func (q *fwSendQueue) len() int { return len(q.entries) }

func (q *fwSendQueue) clear() { q.entries = nil }
