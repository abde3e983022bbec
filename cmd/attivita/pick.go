package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/autocomplete"
)

const (
	pickerLimit = 20
	pickerPage  = 5
)

// input is where interactive answers are read from.
var input io.Reader = os.Stdin

// pickClient offers the registry clients closest to typed. It reports false when the
// typed text should be kept as a free client name.
func (e *env) pickClient(ctx context.Context, typed string) (autocomplete.Client, bool) {
	candidates, err := e.catalog.Suggest(ctx, typed, pickerLimit)
	if err != nil {
		e.logger.Warn("client registry unavailable", "err", err)
		return autocomplete.Client{}, false
	}
	var p autocomplete.Picker
	p.Open(candidates)
	return chooseClient(&p, typed, bufio.NewReader(input), os.Stderr)
}

// chooseClient drives p from line input: a number picks a visible entry, j and k
// move the highlight, an empty line takes the highlighted entry and "-" keeps typed.
func chooseClient(p *autocomplete.Picker, typed string, in *bufio.Reader, out io.Writer) (autocomplete.Client, bool) {
	for p.IsOpen() {
		visible, highlighted := p.Visible(pickerPage)
		fmt.Fprintf(out, "Clienti simili a %q:\n", typed)
		for i, c := range visible {
			marker := " "
			if i == highlighted {
				marker = ">"
			}
			fmt.Fprintf(out, "%s %d) %s\n", marker, i+1, c.Name)
		}
		fmt.Fprint(out, "Numero, j/k per scorrere, invio per confermare, - per testo libero: ")

		line, err := in.ReadString('\n')
		answer := strings.TrimSpace(line)
		if err != nil && answer == "" {
			p.Close()
			break
		}
		switch answer {
		case "":
			return p.Accept()
		case "-":
			p.Close()
		case "j", "+":
			p.Move(1)
		case "k":
			p.Move(-1)
		default:
			n, convErr := strconv.Atoi(answer)
			if convErr != nil || n < 1 || n > len(visible) {
				fmt.Fprintln(out, "scelta non valida")
				continue
			}
			p.Move(n - 1 - highlighted)
			return p.Accept()
		}
	}
	return autocomplete.Client{}, false
}
