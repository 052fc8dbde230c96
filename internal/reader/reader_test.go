package reader

import "testing"

func TestReadAllNestedForms(t *testing.T) {
	forms, err := New("t.klor", `(chor* Buyer=>Seller [name] -> [decision]
		(A (if cond "y" :n)))`).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(forms) != 1 {
		t.Fatalf("expected 1 top-level form, got %d", len(forms))
	}
	list, ok := forms[0].(List)
	if !ok {
		t.Fatalf("expected List, got %T", forms[0])
	}
	if len(list.Elems) != 6 {
		t.Fatalf("expected 6 elements, got %d: %s", len(list.Elems), String(forms[0]))
	}
	if sym, ok := list.Elems[0].(Symbol); !ok || sym.Name != "chor*" {
		t.Errorf("expected leading symbol chor*, got %#v", list.Elems[0])
	}
}

func TestReadNumberAndString(t *testing.T) {
	forms, err := New("t.klor", `(42 -3.5 "hi\nthere" :kw)`).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	list := forms[0].(List)
	if n, ok := list.Elems[0].(Number); !ok || n.Text != "42" {
		t.Errorf("expected Number 42, got %#v", list.Elems[0])
	}
	if n, ok := list.Elems[1].(Number); !ok || n.Text != "-3.5" {
		t.Errorf("expected Number -3.5, got %#v", list.Elems[1])
	}
	if s, ok := list.Elems[2].(Str); !ok || s.Value != "hi\nthere" {
		t.Errorf("expected Str with escaped newline, got %#v", list.Elems[2])
	}
	if k, ok := list.Elems[3].(Kw); !ok || k.Name != "kw" {
		t.Errorf("expected Kw kw, got %#v", list.Elems[3])
	}
}

func TestUnterminatedListErrors(t *testing.T) {
	_, err := New("t.klor", `(a b`).ReadAll()
	if err == nil {
		t.Fatalf("expected error for unterminated list")
	}
}

func TestHashBraceSetLiteral(t *testing.T) {
	forms, err := New("t.klor", `(-> #{A B} A)`).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	list := forms[0].(List)
	set, ok := list.Elems[1].(SetLit)
	if !ok {
		t.Fatalf("expected SetLit, got %#v", list.Elems[1])
	}
	if len(set.Elems) != 2 {
		t.Fatalf("expected 2 elements in #{A B}, got %d", len(set.Elems))
	}
}

func TestRoleSugarSymbols(t *testing.T) {
	forms, err := New("t.klor", `(A=>B C->D)`).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	list := forms[0].(List)
	if sym, ok := list.Elems[0].(Symbol); !ok || sym.Name != "A=>B" {
		t.Errorf("expected symbol A=>B, got %#v", list.Elems[0])
	}
	if sym, ok := list.Elems[1].(Symbol); !ok || sym.Name != "C->D" {
		t.Errorf("expected symbol C->D, got %#v", list.Elems[1])
	}
}
