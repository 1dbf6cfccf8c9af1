// Package by builds element locators in the vocabulary of the CI server UI:
// buttons by caption, inputs by name, form controls by their "path" attribute.
package by

import (
	"fmt"
	"strings"
)

type Kind int

const (
	KindCSS Kind = iota
	KindXPath
)

func (k Kind) String() string {
	if k == KindXPath {
		return "xpath"
	}
	return "css"
}

// Locator describes how to find elements in the current page.
type Locator struct {
	Kind        Kind
	Value       string
	Description string
}

func (l Locator) String() string {
	if l.Description != "" {
		return l.Description
	}
	return l.Kind.String() + ": " + l.Value
}

func CSS(selector string) Locator {
	return Locator{Kind: KindCSS, Value: selector, Description: "css selector " + selector}
}

func XPath(expr string) Locator {
	return Locator{Kind: KindXPath, Value: expr, Description: "xpath " + expr}
}

func XPathf(format string, args ...any) Locator {
	return XPath(fmt.Sprintf(format, args...))
}

func ID(id string) Locator {
	return Locator{Kind: KindXPath, Value: "//*[@id=" + Literal(id) + "]", Description: "id " + id}
}

func Name(name string) Locator {
	return Locator{Kind: KindXPath, Value: "//*[@name=" + Literal(name) + "]", Description: "name " + name}
}

// Input matches text-like fields by name, id or placeholder.
func Input(name string) Locator {
	l := Literal(name)
	return Locator{
		Kind: KindXPath,
		Value: "//input[@name=" + l + " or @id=" + l + " or @placeholder=" + l + "]" +
			" | //textarea[@name=" + l + " or @id=" + l + "]" +
			" | //select[@name=" + l + " or @id=" + l + "]",
		Description: "input " + name,
	}
}

// Button matches <button> by caption, id or name, and submit-like <input>
// by value, id or name.
func Button(caption string) Locator {
	l := Literal(caption)
	return Locator{
		Kind: KindXPath,
		Value: "//button[normalize-space(.)=" + l + " or @id=" + l + " or @name=" + l + "]" +
			" | //input[(@type='submit' or @type='button' or @type='reset' or @type='image')" +
			" and (@value=" + l + " or @id=" + l + " or @name=" + l + ")]",
		Description: "button " + caption,
	}
}

// Link matches anchors by visible text, id, title or alt text of a nested image.
func Link(locator string) Locator {
	l := Literal(locator)
	return Locator{
		Kind: KindXPath,
		Value: "//a[@href][normalize-space(.)=" + l + " or @id=" + l + " or @title=" + l +
			" or .//img[@alt=" + l + "]]",
		Description: "link " + locator,
	}
}

func Checkbox(locator string) Locator {
	return labelledInput("checkbox", locator)
}

func RadioButton(locator string) Locator {
	return labelledInput("radio", locator)
}

func Option(text string) Locator {
	l := Literal(text)
	return Locator{
		Kind:        KindXPath,
		Value:       "//option[normalize-space(.)=" + l + " or @value=" + l + "]",
		Description: "option " + text,
	}
}

// Path matches the element carrying the form path attribute used by the CI
// server's configuration forms, e.g. "/numExecutors".
func Path(path string) Locator {
	return Locator{
		Kind:        KindXPath,
		Value:       "//*[@path=" + Literal(path) + "]",
		Description: "path " + path,
	}
}

func labelledInput(typ, locator string) Locator {
	l := Literal(locator)
	t := Literal(typ)
	return Locator{
		Kind: KindXPath,
		Value: "//input[@type=" + t + " and (@id=" + l + " or @name=" + l + " or @value=" + l + ")]" +
			" | //label[normalize-space(.)=" + l + "]//input[@type=" + t + "]" +
			" | //input[@type=" + t + " and @id=//label[normalize-space(.)=" + l + "]/@for]",
		Description: typ + " " + locator,
	}
}

// Literal quotes s as an XPath string literal. XPath 1.0 has no escape
// syntax, so a value holding both quote kinds is assembled with concat().
func Literal(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}

	parts := strings.Split(s, "'")
	var b strings.Builder
	b.WriteString("concat(")
	for i, p := range parts {
		if i > 0 {
			b.WriteString(`, "'", `)
		}
		b.WriteString("'" + p + "'")
	}
	b.WriteString(")")
	return b.String()
}
