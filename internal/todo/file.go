/* Copyright (c) 2025 Ben Boeckel <mathstuf@gmail.com>
 * SPDX-License-Identifier: MIT OR Apache-2.0 */
package todo

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/natefinch/atomic"
)

// prodIDPrefix marks a calendar document as managed by this tool. The IDN
// prefix is stable across versions; everything after it is informational.
const prodIDPrefix = "-//IDN benboeckel.net//devtodo/"

const version = "0.1.0"

var prodID = prodIDPrefix + version + " go-ical//EN"

// File pairs a parsed calendar document with the item derived from it. The
// raw calendar is kept so that properties and categories this tool does not
// own survive a rewrite.
type File struct {
	path string
	cal  *ical.Calendar
	item *Item
}

func (f *File) Path() string { return f.path }
func (f *File) Item() *Item  { return f.item }

// CreateFile writes a brand-new document for item under dir and returns the
// handle for it. The file is named after the item's uid.
func CreateFile(dir string, item *Item) (*File, error) {
	cal := ical.NewCalendar()
	setValue(cal.Props, ical.PropVersion, "2.0")
	setValue(cal.Props, ical.PropProductID, prodID)

	vtodo := ical.NewComponent(ical.CompToDo)
	setValue(vtodo.Props, ical.PropDateTimeStamp, time.Now().UTC().Format(DateTimeFormat))
	setValue(vtodo.Props, ical.PropUID, item.uid)
	setValue(vtodo.Props, ical.PropCreated, item.created.Format(DateTimeFormat))
	setValue(vtodo.Props, ical.PropClass, "CONFIDENTIAL")
	setValue(vtodo.Props, ical.PropStatus, string(item.status))
	item.updateComponent(vtodo)
	cal.Children = append(cal.Children, vtodo)

	f := &File{
		path: filepath.Join(dir, item.uid+".ics"),
		cal:  cal,
		item: item,
	}
	if err := f.writeFile(); err != nil {
		return nil, err
	}
	item.dirty = false
	return f, nil
}

// LoadFile reads the document at path. It returns (nil, nil) for documents
// this tool does not own or cannot make sense of; only I/O failures are
// errors.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cal, err := ical.NewDecoder(bytes.NewReader(data)).Decode()
	if err != nil {
		return nil, nil
	}
	vtodo, ok := ourComponent(cal)
	if !ok {
		return nil, nil
	}
	item, ok := itemFromComponent(vtodo)
	if !ok {
		return nil, nil
	}

	return &File{path: path, cal: cal, item: item}, nil
}

// Write persists pending item changes. Clean items are skipped entirely so
// unchanged documents keep their timestamps.
func (f *File) Write() error {
	if !f.item.dirty {
		return nil
	}
	vtodo, ok := ourComponent(f.cal)
	if !ok {
		return fmt.Errorf("document %s lost its todo component", f.path)
	}
	f.item.updateComponent(vtodo)
	if err := f.writeFile(); err != nil {
		return err
	}
	f.item.dirty = false
	return nil
}

func (f *File) writeFile() error {
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(f.cal); err != nil {
		return fmt.Errorf("encode %s: %w", f.path, err)
	}
	if err := atomic.WriteFile(f.path, &buf); err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	return nil
}

// ourComponent applies the ownership gate: our PRODID prefix and exactly one
// wrapped VTODO.
func ourComponent(cal *ical.Calendar) (*ical.Component, bool) {
	prodid := cal.Props.Get(ical.PropProductID)
	if prodid == nil || !strings.HasPrefix(prodid.Value, prodIDPrefix) {
		return nil, false
	}
	if len(cal.Children) != 1 {
		return nil, false
	}
	sub := cal.Children[0]
	if sub.Name != ical.CompToDo {
		return nil, false
	}
	return sub, true
}

func itemFromComponent(c *ical.Component) (*Item, bool) {
	uid := propValue(c, ical.PropUID)
	if uid == "" {
		return nil, false
	}

	catsProp := c.Props.Get(ical.PropCategories)
	if catsProp == nil {
		return nil, false
	}
	categories, err := catsProp.TextList()
	if err != nil {
		return nil, false
	}
	var kind Kind
	for _, k := range allKinds {
		for _, category := range categories {
			if category == string(k) {
				kind = k
				break
			}
		}
		if kind != "" {
			break
		}
	}
	if kind == "" {
		return nil, false
	}

	// DTSTAMP is written once at creation and never rewritten, so it doubles
	// as the creation stamp.
	created, err := time.Parse(DateTimeFormat, propValue(c, ical.PropDateTimeStamp))
	if err != nil {
		return nil, false
	}

	var due *Due
	if prop := c.Props.Get(ical.PropDue); prop != nil {
		d, ok := ParseDue(prop.Value)
		if !ok {
			return nil, false
		}
		due = &d
	}

	status, ok := ParseStatus(propValue(c, ical.PropStatus))
	if !ok {
		return nil, false
	}

	url := propValue(c, ical.PropURL)
	if url == "" {
		return nil, false
	}
	summaryProp := c.Props.Get(ical.PropSummary)
	descriptionProp := c.Props.Get(ical.PropDescription)
	if summaryProp == nil || descriptionProp == nil {
		return nil, false
	}
	summary, err := summaryProp.Text()
	if err != nil {
		return nil, false
	}
	description, err := descriptionProp.Text()
	if err != nil {
		return nil, false
	}

	var lastModified time.Time
	dirty := false
	if prop := c.Props.Get(ical.PropLastModified); prop != nil {
		lastModified, err = time.Parse(DateTimeFormat, prop.Value)
		if err != nil {
			return nil, false
		}
	} else {
		// Missing a time? Use now and mark dirty so the property self-heals
		// on the next write.
		lastModified = time.Now().UTC()
		dirty = true
	}

	return &Item{
		uid:          uid,
		kind:         kind,
		created:      created,
		due:          due,
		status:       status,
		url:          url,
		summary:      summary,
		description:  description,
		lastModified: lastModified,
		dirty:        dirty,
	}, true
}

// updateComponent rewrites the properties this tool owns, leaving everything
// else in the component alone.
func (i *Item) updateComponent(c *ical.Component) {
	setText(c.Props, ical.PropSummary, i.summary)
	setText(c.Props, ical.PropDescription, i.description)
	setValue(c.Props, ical.PropURL, i.url)
	if i.due != nil {
		prop := ical.NewProp(ical.PropDue)
		prop.Value = i.due.String()
		if i.due.dateOnly {
			prop.SetValueType(ical.ValueDate)
		}
		c.Props.Set(prop)
	}
	setValue(c.Props, ical.PropLastModified, i.lastModified.Format(DateTimeFormat))

	if prop := c.Props.Get(ical.PropCategories); prop != nil {
		categories, err := prop.TextList()
		if err != nil {
			categories = nil
		}

		kindCategories := make([]string, 0, 1)
		for _, category := range categories {
			if isKind(category) {
				kindCategories = append(kindCategories, category)
			}
		}
		if len(kindCategories) == 1 && kindCategories[0] == string(i.kind) {
			return
		}

		// Ordered set-difference: keep foreign tokens in place, then append
		// the current kind.
		merged := make([]string, 0, len(categories)+1)
		for _, category := range categories {
			if !isKind(category) {
				merged = append(merged, category)
			}
		}
		merged = append(merged, string(i.kind))

		newProp := ical.NewProp(ical.PropCategories)
		newProp.SetTextList(merged)
		c.Props.Set(newProp)
	} else {
		newProp := ical.NewProp(ical.PropCategories)
		newProp.SetTextList([]string{string(i.kind)})
		c.Props.Set(newProp)
	}
}

func propValue(c *ical.Component, name string) string {
	prop := c.Props.Get(name)
	if prop == nil {
		return ""
	}
	return prop.Value
}

func setValue(props ical.Props, name, value string) {
	prop := ical.NewProp(name)
	prop.Value = value
	props.Set(prop)
}

func setText(props ical.Props, name, text string) {
	prop := ical.NewProp(name)
	prop.SetText(text)
	props.Set(prop)
}
