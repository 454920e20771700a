package panel

const htmlUI = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Drone Cockpit</title>
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <style>
    :root { color-scheme: dark; }
    body {
      background: #0f1115; color: #e8e8e8; margin: 0;
      font-family: ui-sans-serif, system-ui, -apple-system, Segoe UI, Roboto, Helvetica, Arial, sans-serif;
      display: flex; flex-direction: column; align-items: center; padding: 16px;
    }
    h2 { margin: 8px 0 12px; font-weight: 600; }
    #layout { display: flex; flex-wrap: wrap; gap: 16px; justify-content: center; }
    .card {
      background: #161a22; border: 1px solid #2a2f3a; border-radius: 10px;
      padding: 14px; min-width: 260px;
    }
    .card h3 { margin: 0 0 10px; font-size: 14px; color: #9aa4b2; text-transform: uppercase; }
    button {
      background: #232a36; color: #e8e8e8; border: 1px solid #2f3848; border-radius: 8px;
      padding: 8px 12px; margin: 3px; cursor: pointer; font-size: 14px;
    }
    button:hover { background: #2d3644; }
    button.danger { background: #5b1b1b; border-color: #7e2a2a; }
    #video { width: 480px; max-width: 90vw; background: #000; border-radius: 8px; min-height: 270px; }
    #pad { display: grid; grid-template-columns: repeat(3, 56px); justify-content: center; }
    #telemetry td { padding: 2px 10px 2px 0; font-variant-numeric: tabular-nums; }
    #statusbar {
      margin-top: 10px; font-size: 13px; color: #9aa4b2;
    }
    .dot { display: inline-block; width: 9px; height: 9px; border-radius: 50%; margin-right: 6px; background: #7e2a2a; }
    .dot.on { background: #2f8f46; }
    input[type=range] { width: 180px; vertical-align: middle; }
  </style>
</head>
<body>
  <h2>Drone Cockpit</h2>
  <div id="layout">
    <div class="card">
      <h3>Video</h3>
      <img id="video" alt="video feed" />
    </div>
    <div class="card">
      <h3>Flight</h3>
      <div>
        <button onclick="post('/api/connect')">Connect</button>
        <button onclick="post('/api/disconnect')">Disconnect</button>
      </div>
      <div>
        <button onclick="post('/api/takeoff')">Take Off</button>
        <button onclick="post('/api/land')">Land</button>
        <button class="danger" onclick="post('/api/emergency')">Emergency</button>
      </div>
      <div id="pad">
        <span></span><button onclick="move('forward')">&#8593;</button><span></span>
        <button onclick="move('left')">&#8592;</button><button onclick="post('/api/flip',{direction:'forward'})">Flip</button><button onclick="move('right')">&#8594;</button>
        <span></span><button onclick="move('back')">&#8595;</button><span></span>
      </div>
      <div>
        <button onclick="move('up')">Up</button>
        <button onclick="move('down')">Down</button>
        <button onclick="rotate('counterclockwise')">&#8634; 90&#176;</button>
        <button onclick="rotate('clockwise')">&#8635; 90&#176;</button>
      </div>
      <div>
        Speed <input id="speed" type="range" min="0" max="100" value="50"
          onchange="post('/api/speed',{speed:parseInt(this.value)})" />
        <span id="speedval">50</span>
      </div>
      <div>
        <button onclick="track(true)">Track On</button>
        <button onclick="track(false)">Track Off</button>
        <button onclick="post('/api/record/start')">Rec</button>
        <button onclick="post('/api/record/stop')">Stop Rec</button>
      </div>
    </div>
    <div class="card">
      <h3>Telemetry</h3>
      <table id="telemetry">
        <tr><td>Battery</td><td id="battery">&mdash;</td></tr>
        <tr><td>Temperature</td><td id="temperature">&mdash;</td></tr>
        <tr><td>Height</td><td id="height">&mdash;</td></tr>
        <tr><td>Speed</td><td id="speedxyz">&mdash;</td></tr>
        <tr><td>Flight time</td><td id="flighttime">&mdash;</td></tr>
      </table>
    </div>
  </div>
  <div id="statusbar"><span id="conn" class="dot"></span><span id="statustext">disconnected</span></div>
  <script>
    const speedSlider = document.getElementById('speed');
    speedSlider.addEventListener('input', () => document.getElementById('speedval').textContent = speedSlider.value);

    async function post(path, body) {
      try {
        const opts = { method: 'POST' };
        if (body !== undefined) {
          opts.headers = { 'Content-Type': 'application/json' };
          opts.body = JSON.stringify(body);
        }
        const resp = await fetch(path, opts);
        const res = await resp.json();
        setStatus(res.message || res.status);
      } catch (err) {
        setStatus('request failed: ' + err);
      }
    }
    const move = dir => post('/api/move', { direction: dir, distance: 30 });
    const rotate = dir => post('/api/rotate', { direction: dir, degrees: 90 });
    const track = on => post('/api/track', { enabled: on });

    function setStatus(text) { document.getElementById('statustext').textContent = text; }
    const set = (id, v) => document.getElementById(id).textContent = v;

    function onTelemetry(d) {
      if (d.battery !== undefined) set('battery', d.battery + ' %');
      if (d.temperature !== undefined) set('temperature', d.temperature + ' °C');
      if (d.height !== undefined) set('height', d.height + ' cm');
      if (d.speed) set('speedxyz', (d.speed.x||0) + ' / ' + (d.speed.y||0) + ' / ' + (d.speed.z||0) + ' cm/s');
      if (d.flight_time !== undefined) set('flighttime', d.flight_time + ' s');
    }

    function connectWS() {
      const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/api/ws');
      ws.onmessage = ev => {
        const msg = JSON.parse(ev.data);
        if (msg.type === 'state_update') {
          onTelemetry(msg.data);
        } else if (msg.type === 'video_frame') {
          document.getElementById('video').src = 'data:image/jpeg;base64,' + msg.data.frame;
        } else if (msg.type === 'connection_state') {
          document.getElementById('conn').className = 'dot' + (msg.data.state === 'connected' ? ' on' : '');
          setStatus('drone ' + msg.data.state);
        }
      };
      ws.onclose = () => setTimeout(connectWS, 2000);
    }
    connectWS();
  </script>
</body>
</html>
`
