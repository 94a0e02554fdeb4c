package server

// testPageHTML is a self-contained manual test harness: open it on two
// phones, start tracking with different user IDs, and watch the hit
// responses as the devices come within the threshold.
const testPageHTML = `<!doctype html>
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>Proximity Test</title>
<style>
  body{font-family:sans-serif;max-width:720px;margin:24px auto;padding:0 12px}
  input,button{font-size:16px;padding:8px;margin:6px 0}
  .log{white-space:pre-wrap;font-family:ui-monospace,Menlo,monospace;background:#f7f7f7;padding:8px;border-radius:8px;max-height:40vh;overflow:auto}
</style>
<h1>Proximity Test</h1>
<p>Enter a user ID and press Start to begin sending your location. Press Stop to end tracking.</p>
<label>User ID: <input id="uid" placeholder="alice or bob"></label><br>
<button id="start">Start Tracking</button>
<button id="stop" disabled>Stop Tracking</button>
<div class="log" id="log"></div>
<script>
let watchId = null;
const log = (m)=>{
  const el=document.getElementById('log');
  el.textContent += m + "\n";
  el.scrollTop = el.scrollHeight;
};

async function postLocation(uid, lat, lon){
  const res = await fetch("/api/location",{
    method:"POST",
    headers:{ "Content-Type":"application/json" },
    body: JSON.stringify({ userID: uid, latitude: lat, longitude: lon })
  });
  const j = await res.json().catch(()=>({}));
  log("POST -> " + res.status + " " + JSON.stringify(j));
}

document.getElementById("start").onclick = ()=>{
  const uid = document.getElementById("uid").value.trim();
  if(!uid){ alert("Please enter a user ID"); return; }
  if(!('geolocation' in navigator)){
    alert("This browser does not support geolocation"); return;
  }
  log("Start watchPosition for " + uid);
  watchId = navigator.geolocation.watchPosition(
    (pos)=>{
      const {latitude, longitude, accuracy} = pos.coords;
      log("loc: lat=" + latitude.toFixed(6) + ", lon=" + longitude.toFixed(6) + ", acc=" + Math.round(accuracy) + "m");
      postLocation(uid, latitude, longitude).catch(e=>log("ERR post: " + e));
    },
    (err)=>{ log("geo error: " + err.message); },
    { enableHighAccuracy: true, maximumAge: 3000, timeout: 10000 }
  );
  document.getElementById("start").disabled = true;
  document.getElementById("stop").disabled = false;
};

document.getElementById("stop").onclick = ()=>{
  if(watchId !== null){
    navigator.geolocation.clearWatch(watchId);
    log("Stopped tracking");
    watchId = null;
    document.getElementById("start").disabled = false;
    document.getElementById("stop").disabled = true;
  }
};
</script>
`
