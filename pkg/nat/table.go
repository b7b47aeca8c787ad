package nat

// Table is the ordered forwarding table. The save endpoint addresses rules by
// position, so order is significant and preserved.
type Table struct {
	Rules []Rule
}

// Len returns the number of rules.
func (t *Table) Len() int {
	return len(t.Rules)
}

// Find returns copies of all rules named name.
func (t *Table) Find(name string) []Rule {
	var found []Rule
	for _, rule := range t.Rules {
		if rule.Name == name {
			found = append(found, rule)
		}
	}
	return found
}

// Append adds a rule at the end of the table.
func (t *Table) Append(rule Rule) {
	t.Rules = append(t.Rules, rule)
}

// SetEnabled sets the state of every rule named name and returns the rules
// that actually changed.
func (t *Table) SetEnabled(name string, enabled bool) []Rule {
	var changed []Rule
	for i := range t.Rules {
		if t.Rules[i].Name == name && t.Rules[i].Enabled != enabled {
			t.Rules[i].Enabled = enabled
			changed = append(changed, t.Rules[i])
		}
	}
	return changed
}

// Rename renames every rule named name and returns them as they were
// before the rename. Renaming to the same name changes nothing.
func (t *Table) Rename(name, newName string) []Rule {
	if name == newName {
		return nil
	}
	var renamed []Rule
	for i := range t.Rules {
		if t.Rules[i].Name == name {
			renamed = append(renamed, t.Rules[i])
			t.Rules[i].Name = newName
		}
	}
	return renamed
}

// Update applies u to every rule named name and returns the rules that
// changed. If any updated rule would be invalid the table is left untouched.
func (t *Table) Update(name string, u RuleUpdate) ([]Rule, error) {
	var (
		changed []Rule
		indexes []int
	)
	for i := range t.Rules {
		if t.Rules[i].Name != name {
			continue
		}
		updated := t.Rules[i]
		if !u.apply(&updated) {
			continue
		}
		if err := updated.validateFields(); err != nil {
			return nil, err
		}
		indexes = append(indexes, i)
		changed = append(changed, updated)
	}
	for j, i := range indexes {
		t.Rules[i] = changed[j]
	}
	return changed, nil
}

// Converge brings every rule named want.Name to want's state and returns the
// rules that changed.
func (t *Table) Converge(want Rule) []Rule {
	update := RuleUpdate{
		PublicPortMin:  &want.PublicPortMin,
		PublicPortMax:  &want.PublicPortMax,
		PrivatePortMin: &want.PrivatePortMin,
		PrivatePortMax: &want.PrivatePortMax,
		TargetHost:     &want.TargetHost,
		Protocol:       &want.Protocol,
	}

	var changed []Rule
	for i := range t.Rules {
		rule := &t.Rules[i]
		if rule.Name != want.Name {
			continue
		}
		updated := update.apply(rule)
		if rule.Enabled != want.Enabled {
			rule.Enabled = want.Enabled
			updated = true
		}
		if updated {
			changed = append(changed, *rule)
		}
	}
	return changed
}

// Remove drops every rule named name and returns the removed rules.
func (t *Table) Remove(name string) []Rule {
	return t.RemoveFunc(func(rule Rule) bool { return rule.Name == name })
}

// RemoveFunc drops every rule for which match returns true and returns them.
func (t *Table) RemoveFunc(match func(Rule) bool) []Rule {
	var removed []Rule
	kept := t.Rules[:0]
	for _, rule := range t.Rules {
		if match(rule) {
			removed = append(removed, rule)
			continue
		}
		kept = append(kept, rule)
	}
	t.Rules = kept
	return removed
}
