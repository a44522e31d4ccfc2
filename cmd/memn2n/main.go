package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/gorgonia/memn2n"
	"github.com/gorgonia/memn2n/encoding/gif"
	"github.com/gorgonia/memn2n/task"
	"github.com/gorgonia/memn2n/task/locate"
)

var (
	epochs   = flag.Int("epochs", 10, "number of epochs")
	examples = flag.Int("examples", 1000, "training examples generated per epoch")
	nniters  = flag.Int("iters", 20, "training iterations over the examples of an epoch")
	eval     = flag.Int("eval", 100, "examples the network is evaluated on after every epoch")
	length   = flag.Int("length", 5, "sentences per story. This is also the size of the memory")
	hops     = flag.Int("hops", 3, "hops of the memory network")
	dropout  = flag.Float64("dropout", 0.1, "dropout rate")
	varDrop  = flag.Bool("variational", true, "share one dropout mask across hops")
	addr     = flag.String("addr", ":8080", "address serving the progress websocket. Empty to turn it off")
	gifOut   = flag.String("gif", "", "file to render the attention of the evaluated questions into")
	modelOut = flag.String("model", "locate.model", "file to save the learnt model into")
	statsOut = flag.String("stats", "locate.csv", "file to dump the statistics into")
)

func fmtSentence(s task.Sentence) string { return fmt.Sprintf("%v", s) }

func main() {
	flag.Parse()

	l := locate.Default(*length)
	conf := memn2n.DefaultConfig(l, *length)
	conf.NNConf.Hops = *hops
	conf.NNConf.DropoutRate = *dropout
	conf.NNConf.Variational = *varDrop

	var outs multi
	if *addr != "" {
		outEnc := NewEncoder()
		go func(h http.Handler) {
			mux := http.NewServeMux()
			mux.Handle("/ws", h)

			log.Printf("ws://localhost%s/ws", *addr)
			if err := http.ListenAndServe(*addr, mux); err != nil {
				log.Println(err)
			}
		}(outEnc)
		outs = append(outs, outEnc)
	}
	if *gifOut != "" {
		f, err := os.Create(*gifOut)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		g := gif.NewGifEncoder(800, 1600)
		g.Writer = f
		outs = append(outs, g)
	}
	if len(outs) > 0 {
		conf.OutputEncoder = outs
	}

	qa := memn2n.New(l, conf)
	defer qa.Close()
	if err := qa.Learn(*epochs, *examples, *nniters, *eval); err != nil {
		log.Fatalf("%+v", err)
	}
	if err := outs.Flush(); err != nil {
		log.Println(err)
	}
	if err := qa.Save(*modelOut); err != nil {
		log.Fatalf("%+v", err)
	}
	if err := qa.Dump(*statsOut); err != nil {
		log.Fatalf("%+v", err)
	}
}
