package main

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorgonia/memn2n"
	"github.com/gorilla/websocket"
)

type progress struct {
	Epoch     int         `json:"epoch"`
	Accuracy  float32     `json:"accuracy"`
	Story     []string    `json:"story"`
	Question  string      `json:"question"`
	Expected  string      `json:"expected"`
	Answer    string      `json:"answer"`
	Attention [][]float32 `json:"attention"`
}

// Encoder streams snapshots to websocket clients according to the memn2n.OutputEncoder interface.
// Snapshots are dropped when nobody is listening.
type Encoder struct {
	progress chan progress
}

var upgrader = websocket.Upgrader{} // use default options

func (enc *Encoder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Print("upgrade:", err)
		return
	}
	defer c.Close()
	for {
		var b []byte
		select {
		case p := <-enc.progress:
			b, _ = json.Marshal(p)
		case <-r.Context().Done():
			return
		}
		if err = c.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Println("write:", err)
			return
		}
	}
}

// NewEncoder creates a new websocket encoder.
func NewEncoder() *Encoder {
	return &Encoder{
		progress: make(chan progress, 64),
	}
}

// Encode a snapshot
func (enc *Encoder) Encode(s memn2n.Snapshot) error {
	p := progress{
		Epoch:     s.Epoch,
		Accuracy:  s.Accuracy,
		Question:  fmtSentence(s.Example.Question),
		Expected:  s.Example.Answer,
		Answer:    s.Answer.Word,
		Attention: s.Answer.Attention,
	}
	for _, sent := range s.Example.Story {
		p.Story = append(p.Story, fmtSentence(sent))
	}
	select {
	case enc.progress <- p:
	default:
	}
	return nil
}

// Flush ...
func (enc *Encoder) Flush() error { return nil }

// multi encodes to many encoders.
type multi []memn2n.OutputEncoder

func (m multi) Encode(s memn2n.Snapshot) error {
	for _, enc := range m {
		if err := enc.Encode(s); err != nil {
			return err
		}
	}
	return nil
}

func (m multi) Flush() error {
	for _, enc := range m {
		if err := enc.Flush(); err != nil {
			return err
		}
	}
	return nil
}
