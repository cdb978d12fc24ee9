package cdp

import (
	"encoding/json"
	"fmt"
)

// monitorJS records UI activity into a page global. Idempotent: a page that
// already carries the monitor reports "ok" so Poll can tell a fresh install
// (post-reload) from a healthy one.
const monitorJS = `(() => {
  if (window.__promptpilot) { return "ok"; }
  const st = { lastActivity: 0, lastDomChange: 0 };
  const touch = () => { st.lastActivity = Date.now(); };
  document.addEventListener("click", touch, true);
  document.addEventListener("keydown", touch, true);
  const obs = new MutationObserver(() => { st.lastDomChange = Date.now(); });
  obs.observe(document.documentElement, { childList: true, subtree: true, characterData: true });
  window.__promptpilot = st;
  return "installed";
})()`

// statsJS returns the monitor record as a JSON string. A page without the
// monitor (not yet installed, or reloaded) reports zeros rather than failing.
const statsJS = `(() => {
  const st = window.__promptpilot || { lastActivity: 0, lastDomChange: 0 };
  return JSON.stringify({ lastActivity: st.lastActivity, lastDomChange: st.lastDomChange });
})()`

// sendPromptTemplate fills the chat input and submits. Selectors cover the
// known chat surfaces; Enter is dispatched as a fallback when no send button
// is found.
const sendPromptTemplate = `(() => {
  const text = %s;
  const input = document.querySelector(
    'textarea[data-chat-input], div.chat-input textarea, [contenteditable="true"][role="textbox"], textarea'
  );
  if (!input) { return "no-input"; }
  input.focus();
  if (input.tagName === "TEXTAREA") {
    const setter = Object.getOwnPropertyDescriptor(window.HTMLTextAreaElement.prototype, "value").set;
    setter.call(input, text);
  } else {
    input.textContent = text;
  }
  input.dispatchEvent(new Event("input", { bubbles: true }));
  const button = document.querySelector('button[data-chat-send], button[aria-label="Send"], button[type="submit"]');
  if (button && !button.disabled) {
    button.click();
    return "sent";
  }
  input.dispatchEvent(new KeyboardEvent("keydown", { key: "Enter", code: "Enter", bubbles: true }));
  return "sent";
})()`

// sendPromptExpr builds the submit expression with the prompt JSON-escaped,
// so arbitrary text (quotes, newlines) survives the trip into the page.
func sendPromptExpr(text string) string {
	quoted, _ := json.Marshal(text)
	return fmt.Sprintf(sendPromptTemplate, quoted)
}
