package server

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>RAG Chatbot Assistance</title>
<style>
  body { font-family: sans-serif; max-width: 860px; margin: 2rem auto; padding: 0 1rem; }
  #chat { border: 1px solid #ccc; border-radius: 6px; padding: 1rem; min-height: 320px; margin-bottom: 1rem; }
  .turn { margin: 0.5rem 0; }
  .turn.user { text-align: right; color: #1a4d8f; }
  .turn.assistant { text-align: left; color: #222; }
  .sources { font-size: 0.8rem; color: #777; }
  .error { color: #b00020; }
  #controls { display: flex; gap: 0.5rem; margin-bottom: 1rem; }
  #question { flex: 1; padding: 0.5rem; }
  button { padding: 0.5rem 1rem; }
</style>
</head>
<body>
<h1>RAG Chatbot Assistance</h1>
<p>Upload documents and get instant answers.</p>

<div>
  <input type="file" id="files" multiple accept=".pdf,.docx,.txt,.md">
  <button onclick="upload()">Process documents</button>
  <button onclick="resetBot()">Reset</button>
  <span id="status"></span>
</div>

<div id="chat"></div>

<div id="controls">
  <input type="text" id="question" placeholder="Ask a question about your documents"
         onkeydown="if (event.key === 'Enter') ask()">
  <button onclick="ask()">Ask</button>
</div>

<script>
const chat = document.getElementById('chat');
const status = document.getElementById('status');

function addTurn(role, text, cls) {
  const div = document.createElement('div');
  div.className = 'turn ' + role + (cls ? ' ' + cls : '');
  div.textContent = text;
  chat.appendChild(div);
  chat.scrollTop = chat.scrollHeight;
  return div;
}

async function refreshStatus() {
  const res = await fetch('/api/status');
  const data = await res.json();
  status.textContent = data.provider + ' | ' + data.documents + ' chunks indexed';
}

async function upload() {
  const input = document.getElementById('files');
  if (input.files.length === 0) return;
  const form = new FormData();
  for (const f of input.files) form.append('files', f);
  status.textContent = 'Processing...';
  const res = await fetch('/api/documents', { method: 'POST', body: form });
  const data = await res.json();
  if (res.ok) {
    addTurn('assistant', 'Ingested ' + data.total_chunks + ' chunks from ' + data.files.length + ' file(s).');
  } else {
    addTurn('assistant', data.error || 'Failed to process documents.', 'error');
  }
  refreshStatus();
}

async function ask() {
  const input = document.getElementById('question');
  const question = input.value.trim();
  if (!question) return;
  input.value = '';
  addTurn('user', question);
  const res = await fetch('/api/ask', {
    method: 'POST',
    headers: { 'Content-Type': 'application/json' },
    body: JSON.stringify({ question })
  });
  const data = await res.json();
  if (res.ok) {
    const div = addTurn('assistant', data.answer);
    if (data.sources && data.sources.length > 0) {
      const src = document.createElement('div');
      src.className = 'sources';
      src.textContent = 'Sources: ' + [...new Set(data.sources.map(s => s.source))].join(', ');
      div.appendChild(src);
    }
  } else {
    addTurn('assistant', data.error || 'Request failed.', 'error');
  }
}

async function resetBot() {
  await fetch('/api/reset', { method: 'POST' });
  chat.innerHTML = '';
  refreshStatus();
}

refreshStatus();
</script>
</body>
</html>
`
